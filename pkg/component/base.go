package component

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veesix-networks/vppom/pkg/logger"
)

// Base carries the lifetime of a component: a context cancelled on stop and
// the named workers running under it.
type Base struct {
	name   string
	Ctx    context.Context
	Logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[string]int
}

func NewBase(name string) *Base {
	return &Base{name: name, Logger: logger.Get(name), workers: make(map[string]int)}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) StartContext(parentCtx context.Context) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	b.Ctx, b.cancel = context.WithCancel(parentCtx)
}

// StopContext cancels Ctx and waits for every worker started with Go.
func (b *Base) StopContext() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// Go runs fn with Ctx until it returns. StartContext must have been called.
func (b *Base) Go(worker string, fn func(ctx context.Context)) {
	b.mu.Lock()
	b.workers[worker]++
	b.mu.Unlock()

	ctx := b.Ctx
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			b.mu.Lock()
			if b.workers[worker]--; b.workers[worker] == 0 {
				delete(b.workers, worker)
			}
			b.mu.Unlock()
			b.Logger.Debug("Worker exited", "worker", worker)
		}()
		b.Logger.Debug("Worker started", "worker", worker)
		fn(ctx)
	}()
}

// Running reports how many workers named worker are still running.
func (b *Base) Running(worker string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.workers[worker]
}
