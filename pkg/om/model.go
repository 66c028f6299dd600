package om

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/logger"
)

// ClientKey names a client of the model, e.g. a config source. Every object a
// client commits is held under its key until the client drops it.
type ClientKey string

// Object is a live, interned object. Release drops one reference; the last
// release removes the object from the dataplane.
type Object interface {
	fmt.Stringer
	Release(ctx context.Context)
}

// Template describes desired state. Singular interns it, takes a reference
// on the live instance and programs the dataplane if needed.
type Template interface {
	Singular(ctx context.Context) (Object, error)
}

type Committer interface {
	Commit(ctx context.Context, scope ClientKey, t Template) (Object, error)
}

type heldObject struct {
	obj   Object
	stale bool
}

type client struct {
	objects []*heldObject
}

func (c *client) find(obj Object) *heldObject {
	for _, h := range c.objects {
		if h.obj == obj {
			return h
		}
	}
	return nil
}

type Model struct {
	mu       sync.Mutex
	clients  map[ClientKey]*client
	registry *Registry
	q        hw.Channel
	logger   *slog.Logger
}

func New(q hw.Channel) *Model {
	return &Model{
		clients:  make(map[ClientKey]*client),
		registry: NewRegistry(),
		q:        q,
		logger:   logger.Get(logger.OM),
	}
}

func (m *Model) Register(l Listener) {
	m.registry.Register(l)
	m.logger.Debug("Registered listener", "listener", l.Name(), "order", l.Order().String())
}

func (m *Model) Registry() *Registry {
	return m.registry
}

// Commit interns t and holds the live object under scope. Committing the same
// object twice under one scope holds it once. The returned error reports a
// dataplane channel fault; the object is held regardless.
func (m *Model) Commit(ctx context.Context, scope ClientKey, t Template) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commit(ctx, scope, t)
}

func (m *Model) commit(ctx context.Context, scope ClientKey, t Template) (Object, error) {
	obj, err := t.Singular(ctx)
	if obj == nil {
		return nil, err
	}

	c, ok := m.clients[scope]
	if !ok {
		c = &client{}
		m.clients[scope] = c
	}

	if held := c.find(obj); held != nil {
		held.stale = false
		obj.Release(ctx)
		return obj, err
	}

	c.objects = append(c.objects, &heldObject{obj: obj})
	return obj, err
}

// Mark flags every object held under scope as stale. Objects committed again
// before the next Sweep are kept.
func (m *Model) Mark(scope ClientKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mark(scope)
}

func (m *Model) mark(scope ClientKey) {
	c, ok := m.clients[scope]
	if !ok {
		return
	}
	for _, h := range c.objects {
		h.stale = true
	}
}

// Sweep releases every object still stale under scope.
func (m *Model) Sweep(ctx context.Context, scope ClientKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[scope]
	if !ok {
		return 0
	}

	var kept, swept []*heldObject
	for _, h := range c.objects {
		if h.stale {
			swept = append(swept, h)
		} else {
			kept = append(kept, h)
		}
	}
	c.objects = kept
	if len(kept) == 0 {
		delete(m.clients, scope)
	}

	releaseAll(ctx, swept)
	logger.WithScope(m.logger, string(scope)).Debug("Swept stale objects", "swept", len(swept), "kept", len(kept))
	return len(swept)
}

// Remove releases everything held under scope.
func (m *Model) Remove(ctx context.Context, scope ClientKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[scope]
	if !ok {
		return
	}
	delete(m.clients, scope)
	releaseAll(ctx, c.objects)
}

// releaseAll releases in reverse commit order.
func releaseAll(ctx context.Context, held []*heldObject) {
	for i := len(held) - 1; i >= 0; i-- {
		held[i].obj.Release(ctx)
	}
}

// Populate imports the dataplane's state under scope, kind by kind in class
// order, with dataplane writes disabled so nothing read is written back. The
// scope is marked afterwards: the client re-commits what it still wants and
// then calls Sweep. A failing listener does not stop the others.
func (m *Model) Populate(ctx context.Context, scope ClientKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := logger.WithScope(m.logger, string(scope))

	if sw, ok := m.q.(hw.Switch); ok {
		sw.Disable()
		defer sw.Enable()
	}

	committer := lockedCommitter{m: m}
	var errs []error
	for _, l := range m.registry.Listeners() {
		if err := l.HandlePopulate(ctx, scope, committer); err != nil {
			log.Error("Populate failed", "listener", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("populate %s: %w", l.Name(), err))
			continue
		}
		log.Debug("Populated", "listener", l.Name())
	}

	m.mark(scope)
	return errors.Join(errs...)
}

// Replay re-programs every object after the dataplane lost its state. Each
// class is flushed before the next class is replayed.
func (m *Model) Replay(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, class := range m.registry.Classes() {
		for _, l := range class {
			if err := l.HandleReplay(ctx); err != nil {
				m.logger.Error("Replay failed", "listener", l.Name(), "error", err)
				errs = append(errs, fmt.Errorf("replay %s: %w", l.Name(), err))
			}
		}
		if err := m.q.Write(ctx); err != nil {
			m.logger.Error("Replay flush failed", "order", class[0].Order().String(), "error", err)
			errs = append(errs, fmt.Errorf("replay flush %s: %w", class[0].Order(), err))
		}
	}
	return errors.Join(errs...)
}

// Scopes returns every client key holding at least one object.
func (m *Model) Scopes() []ClientKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]ClientKey, 0, len(m.clients))
	for k := range m.clients {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Held returns the objects held under scope in commit order.
func (m *Model) Held(scope ClientKey) []Object {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[scope]
	if !ok {
		return nil
	}
	out := make([]Object, 0, len(c.objects))
	for _, h := range c.objects {
		out = append(out, h.obj)
	}
	return out
}

// lockedCommitter commits on behalf of listeners while the model lock is
// already held by Populate.
type lockedCommitter struct {
	m *Model
}

func (c lockedCommitter) Commit(ctx context.Context, scope ClientKey, t Template) (Object, error) {
	return c.m.commit(ctx, scope, t)
}
