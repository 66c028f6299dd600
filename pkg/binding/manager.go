package binding

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/veesix-networks/vppom/pkg/events"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/logger"
	"github.com/veesix-networks/vppom/pkg/om"
	"github.com/veesix-networks/vppom/pkg/om/singular"
	"github.com/veesix-networks/vppom/pkg/opdb"
)

// PopulateFunc dumps the dataplane's bindings of one flavour and returns the
// relations it could resolve. Records that cannot be resolved are logged and
// left out of the sequence.
type PopulateFunc[R any] func(ctx context.Context) (iter.Seq[R], error)

type Stats struct {
	Flavour string `json:"flavour"`
	Total   int    `json:"total"`
	Bound   int    `json:"bound"`
	Failed  int    `json:"failed"`
}

// Manager owns every live binding of one flavour.
type Manager[K comparable, R Relation[K, R]] struct {
	name     string
	mu       sync.Mutex
	db       *singular.DB[K, *Binding[K, R]]
	q        hw.Channel
	populate PopulateFunc[R]
	logger   *slog.Logger

	bus     events.Bus
	journal opdb.Store
}

// NewManager returns a manager for the flavour name. compare orders keys for
// Dump and replay. populate may be nil for flavours that cannot be imported.
func NewManager[K comparable, R Relation[K, R]](name string, q hw.Channel, compare func(a, b K) int, populate PopulateFunc[R]) *Manager[K, R] {
	return &Manager[K, R]{
		name:     name,
		db:       singular.New[K, *Binding[K, R]](compare),
		q:        q,
		populate: populate,
		logger:   logger.Get(logger.Binding + "." + name),
	}
}

func (m *Manager[K, R]) SetEventBus(bus events.Bus) {
	m.bus = bus
}

func (m *Manager[K, R]) SetJournal(store opdb.Store) {
	m.journal = store
}

func (m *Manager[K, R]) Name() string {
	return m.name
}

func (m *Manager[K, R]) Order() om.Dependency {
	return om.DependencyBinding
}

// Commit holds the binding for rel under scope and binds it if needed.
func (m *Manager[K, R]) Commit(ctx context.Context, model *om.Model, scope om.ClientKey, rel R) (*Binding[K, R], error) {
	obj, err := model.Commit(ctx, scope, m.Template(rel))
	if obj == nil {
		return nil, err
	}
	return obj.(*Binding[K, R]), err
}

// Template wraps rel for om.Model.Commit.
func (m *Manager[K, R]) Template(rel R) om.Template {
	return template[K, R]{m: m, rel: rel}
}

type template[K comparable, R Relation[K, R]] struct {
	m   *Manager[K, R]
	rel R
}

func (t template[K, R]) Singular(ctx context.Context) (om.Object, error) {
	return t.m.singular(ctx, t.rel)
}

func (m *Manager[K, R]) singular(ctx context.Context, rel R) (*Binding[K, R], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.findOrAdd(rel)
	before := b.state()
	err := b.update(ctx)
	m.transition(ctx, b, before)
	if err != nil {
		return b, fmt.Errorf("bind %s: %w", rel, err)
	}
	return b, nil
}

// FindOrAdd returns the binding for rel's key with a reference taken, creating
// it unbound if there is none. An existing binding is returned unchanged even
// if rel differs from the relation it was created with.
func (m *Manager[K, R]) FindOrAdd(rel R) *Binding[K, R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOrAdd(rel)
}

func (m *Manager[K, R]) findOrAdd(rel R) *Binding[K, R] {
	b, added := m.db.FindOrAdd(rel.Key(), func() *Binding[K, R] {
		return &Binding[K, R]{
			mgr:   m,
			rel:   rel,
			bound: hw.NewItem(false, hw.RCNoop),
		}
	})
	if !added && !b.rel.Equal(rel) {
		m.logger.Debug("Binding exists with a different relation, keeping it",
			"existing", b.rel.String(), "requested", rel.String())
	}
	b.refs++
	return b
}

func (m *Manager[K, R]) Find(key K) (*Binding[K, R], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Find(key)
}

func (m *Manager[K, R]) release(ctx context.Context, b *Binding[K, R]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b.refs--
	if b.refs > 0 {
		return
	}

	before := b.state()
	if err := b.sweep(ctx); err != nil {
		m.logger.Error("Failed to unbind", "binding", b.String(), "error", err)
	}
	m.transition(ctx, b, before)
	m.db.Release(b.Key(), b)
}

// transition publishes and journals a change of bound state.
func (m *Manager[K, R]) transition(ctx context.Context, b *Binding[K, R], before State) {
	after := b.state()
	if b.bound.RC() == hw.RCFailed {
		m.logger.Warn("Binding command failed", "binding", b.String())
	}
	if after == before {
		return
	}
	m.logger.Debug("Binding state changed", "binding", b.String(), "from", before.String(), "to", after.String())

	key := fmt.Sprint(b.Key())
	if m.bus != nil {
		m.bus.Publish(events.TopicBinding, events.Event{
			Type:      events.TopicBinding,
			Timestamp: time.Now(),
			Source:    m.name,
			Data: events.BindingEvent{
				Flavour:  m.name,
				Key:      key,
				Binding:  b.String(),
				State:    after.String(),
				Previous: before.String(),
			},
		})
	}

	if m.journal == nil {
		return
	}
	if after == StateUnbound {
		if err := m.journal.Delete(ctx, m.name, key); err != nil {
			m.logger.Warn("Failed to remove binding from journal", "key", key, "error", err)
		}
		return
	}
	if err := m.journal.Put(ctx, m.record(b)); err != nil {
		m.logger.Warn("Failed to journal binding", "key", key, "error", err)
	}
}

// HandleReplay binds every bound binding again and flushes. Bindings the
// dataplane rejects transition to unbound.
func (m *Manager[K, R]) HandleReplay(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var replayed []*Binding[K, R]
	for _, b := range m.db.All() {
		if b.replay() {
			replayed = append(replayed, b)
		}
	}
	if len(replayed) == 0 {
		return nil
	}

	err := m.q.Write(ctx)
	for _, b := range replayed {
		m.transition(ctx, b, StateBound)
	}
	m.logger.Debug("Replayed bindings", "replayed", len(replayed), "total", m.db.Len())
	if err != nil {
		return fmt.Errorf("replay %s bindings: %w", m.name, err)
	}
	return nil
}

// HandlePopulate commits every binding found in the dataplane under scope.
func (m *Manager[K, R]) HandlePopulate(ctx context.Context, scope om.ClientKey, c om.Committer) error {
	if m.populate == nil {
		return nil
	}

	rels, err := m.populate(ctx)
	if err != nil {
		return fmt.Errorf("dump %s bindings: %w", m.name, err)
	}

	n := 0
	for rel := range rels {
		if _, err := c.Commit(ctx, scope, m.Template(rel)); err != nil {
			m.logger.Error("Failed to commit populated binding", "binding", rel.String(), "error", err)
			continue
		}
		n++
	}
	logger.WithScope(m.logger, string(scope)).Info("Populated bindings", "count", n)
	return nil
}

// All yields every live binding in key order.
func (m *Manager[K, R]) All() []*Binding[K, R] {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Binding[K, R], 0, m.db.Len())
	for _, b := range m.db.All() {
		out = append(out, b)
	}
	return out
}

func (m *Manager[K, R]) record(b *Binding[K, R]) opdb.Record {
	return opdb.Record{
		Flavour: m.name,
		Key:     fmt.Sprint(b.Key()),
		Binding: b.rel.String(),
		State:   b.state().String(),
	}
}

// Records describes every live binding in key order.
func (m *Manager[K, R]) Records() []opdb.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]opdb.Record, 0, m.db.Len())
	for _, b := range m.db.All() {
		out = append(out, m.record(b))
	}
	return out
}

// Dump writes one line per live binding in key order.
func (m *Manager[K, R]) Dump(w io.Writer) error {
	m.mu.Lock()
	lines := make([]string, 0, m.db.Len())
	for _, b := range m.db.All() {
		lines = append(lines, b.String())
	}
	m.mu.Unlock()

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager[K, R]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Len()
}

func (m *Manager[K, R]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Flavour: m.name, Total: m.db.Len()}
	for _, b := range m.db.All() {
		switch b.bound.RC() {
		case hw.RCOK:
			s.Bound++
		case hw.RCFailed:
			s.Failed++
		}
	}
	return s
}

