package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veesix-networks/vppom/pkg/logger"
)

// Orchestrator starts components in registration order and stops them in
// reverse.
type Orchestrator struct {
	components []Component
	started    int
	mu         sync.Mutex
	logger     *slog.Logger
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		components: make([]Component, 0),
		logger:     logger.Get(logger.Main),
	}
}

func (o *Orchestrator) Register(comp Component) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.components = append(o.components, comp)
}

// Start stops whatever already started if a component fails to start.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, comp := range o.components {
		o.logger.Debug("Starting component", "component", comp.Name())
		if err := comp.Start(ctx); err != nil {
			o.started = i
			stopErr := o.stop(ctx)
			return errors.Join(fmt.Errorf("failed to start %s: %w", comp.Name(), err), stopErr)
		}
	}
	o.started = len(o.components)
	return nil
}

func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stop(ctx)
}

func (o *Orchestrator) stop(ctx context.Context) error {
	var errs []error
	for i := o.started - 1; i >= 0; i-- {
		comp := o.components[i]
		o.logger.Debug("Stopping component", "component", comp.Name())
		if err := comp.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", comp.Name(), err))
		}
	}
	o.started = 0
	return errors.Join(errs...)
}

// Reload calls Reload on every started component that supports it.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for _, comp := range o.components[:o.started] {
		r, ok := comp.(Reloader)
		if !ok {
			continue
		}
		if err := r.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to reload %s: %w", comp.Name(), err))
		}
	}
	return errors.Join(errs...)
}
