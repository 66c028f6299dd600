// Package reconciler keeps the dataplane's bindings in line with the
// configured ones.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.fd.io/govpp/core"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppom/pkg/acl"
	"github.com/veesix-networks/vppom/pkg/component"
	"github.com/veesix-networks/vppom/pkg/config"
	"github.com/veesix-networks/vppom/pkg/events"
	"github.com/veesix-networks/vppom/pkg/l3"
	"github.com/veesix-networks/vppom/pkg/logger"
	"github.com/veesix-networks/vppom/pkg/om"
)

// Scope is the client key configured bindings are held under.
const Scope om.ClientKey = "config"

// Source returns the desired bindings. It is called on start and on every
// reload.
type Source func() (config.Bindings, error)

type Component struct {
	*component.Base

	stack  *Stack
	source Source
	bus    events.Bus
	conn   <-chan core.ConnectionEvent
	mu     sync.Mutex
}

var (
	_ component.Component = (*Component)(nil)
	_ component.Reloader  = (*Component)(nil)
)

// New returns the reconciler. bus and conn may be nil; without conn nothing
// is replayed on reconnect.
func New(stack *Stack, source Source, bus events.Bus, conn <-chan core.ConnectionEvent) *Component {
	return &Component{
		Base:   component.NewBase(logger.Reconciler),
		stack:  stack,
		source: source,
		bus:    bus,
		conn:   conn,
	}
}

// Start imports the dataplane's state, commits the configured bindings and
// unbinds whatever was imported but is not configured.
func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)

	if err := c.Sync(ctx); err != nil {
		c.Logger.Warn("Initial sync incomplete", "error", err)
	}

	if c.conn != nil {
		c.Go("watch", c.watch)
	}
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.Logger.Info("Stopping reconciler")
	c.StopContext()
	return nil
}

// Sync runs populate then Reload.
func (c *Component) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	err := c.stack.Model.Populate(ctx, Scope)
	c.publish(events.TopicPopulate, events.PopulateEvent{Scope: string(Scope), Error: errString(err)})
	if err != nil {
		c.Logger.Error("Populate failed", "error", err)
	}

	applyErr := c.apply(ctx)
	swept := c.stack.Model.Sweep(ctx, Scope)
	c.Logger.Info("Synced bindings", "swept", swept, "duration", time.Since(start))
	return errors.Join(err, applyErr)
}

// Reload re-reads the source and reconciles against it.
func (c *Component) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stack.Model.Mark(Scope)
	err := c.apply(ctx)
	swept := c.stack.Model.Sweep(ctx, Scope)
	c.Logger.Info("Reloaded bindings", "swept", swept)
	return err
}

// Replay reprograms every bound binding after the dataplane restarted.
func (c *Component) Replay(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.stack.Model.Replay(ctx)
	c.publish(events.TopicReplay, events.ReplayEvent{Error: errString(err)})
	if err != nil {
		c.Logger.Error("Replay failed", "error", err)
		return err
	}
	c.Logger.Info("Replayed bindings")
	return nil
}

func (c *Component) watch(ctx context.Context) {
	connected := true
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.conn:
			if !ok {
				return
			}
			c.Logger.Debug("Dataplane connection event", "state", ev.State)
			switch ev.State {
			case core.Connected:
				if !connected {
					c.Logger.Info("Dataplane reconnected, replaying bindings")
					// Replay logs and publishes its own failure.
					_ = c.Replay(ctx)
				}
				connected = true
			case core.Disconnected, core.Failed:
				if connected {
					c.Logger.Warn("Dataplane connection lost", "error", ev.Error)
				}
				connected = false
			}
		}
	}
}

// apply commits every configured binding whose interface and list resolve.
// Unresolved entries are logged and skipped.
func (c *Component) apply(ctx context.Context) error {
	desired, err := c.source()
	if err != nil {
		return fmt.Errorf("read desired bindings: %w", err)
	}

	s := c.stack
	var errs []error
	fail := func(err error, args ...any) {
		c.Logger.Error("Skipping binding", append(args, "error", err)...)
		errs = append(errs, err)
	}

	for _, b := range desired.ACL {
		dir, err := acl.ParseDirection(b.Direction)
		if err != nil {
			fail(err, "interface", b.Interface)
			continue
		}
		itf := s.Interfaces.GetByName(b.Interface)
		if itf == nil {
			fail(fmt.Errorf("unknown interface %s", b.Interface), "acl", b.ACL)
			continue
		}
		list := s.ACLLists.FindByKey(b.ACL)
		if list == nil {
			fail(fmt.Errorf("unknown acl %s", b.ACL), "interface", b.Interface)
			continue
		}
		if _, err := s.ACL.Commit(ctx, s.Model, Scope, acl.L3Relation{Direction: dir, Itf: itf, ACL: list}); err != nil {
			errs = append(errs, err)
		}
	}

	for _, b := range desired.MACIP {
		itf := s.Interfaces.GetByName(b.Interface)
		if itf == nil {
			fail(fmt.Errorf("unknown interface %s", b.Interface), "macip_acl", b.ACL)
			continue
		}
		list := s.MACIPLists.FindByKey(b.ACL)
		if list == nil {
			fail(fmt.Errorf("unknown macip acl %s", b.ACL), "interface", b.Interface)
			continue
		}
		if _, err := s.MACIP.Commit(ctx, s.Model, Scope, acl.L2Relation{Itf: itf, ACL: list}); err != nil {
			errs = append(errs, err)
		}
	}

	for _, b := range desired.Prefixes {
		itf := s.Interfaces.GetByName(b.Interface)
		if itf == nil {
			fail(fmt.Errorf("unknown interface %s", b.Interface), "prefix", b.Prefix)
			continue
		}
		pfx, err := netaddr.ParseIPPrefix(b.Prefix)
		if err != nil {
			fail(err, "interface", b.Interface)
			continue
		}
		if _, err := s.Prefixes.Commit(ctx, s.Model, Scope, l3.Relation{Itf: itf, Prefix: pfx}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Component) publish(topic string, data any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(topic, events.Event{
		Type:      topic,
		Timestamp: time.Now(),
		Source:    logger.Reconciler,
		Data:      data,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
