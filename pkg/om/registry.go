package om

import (
	"context"
	"slices"
	"sync"
)

// Listener is an object kind taking part in populate and replay.
type Listener interface {
	Name() string
	Order() Dependency
	// HandlePopulate imports the dataplane's state for this kind, committing
	// what it finds under scope.
	HandlePopulate(ctx context.Context, scope ClientKey, c Committer) error
	// HandleReplay re-programs every programmed object. Commands left queued
	// are flushed by the caller once the whole class has replayed.
	HandleReplay(ctx context.Context) error
}

type Registry struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Listeners returns every listener ordered by class. Listeners of the same
// class keep their registration order.
func (r *Registry) Listeners() []Listener {
	r.mu.RLock()
	out := slices.Clone(r.listeners)
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Listener) int {
		return int(a.Order()) - int(b.Order())
	})
	return out
}

// Classes groups Listeners by class, lowest class first.
func (r *Registry) Classes() [][]Listener {
	var groups [][]Listener
	for _, l := range r.Listeners() {
		n := len(groups)
		if n > 0 && groups[n-1][0].Order() == l.Order() {
			groups[n-1] = append(groups[n-1], l)
			continue
		}
		groups = append(groups, []Listener{l})
	}
	return groups
}
