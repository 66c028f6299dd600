// Package binding implements the lifecycle shared by every binding flavour:
// one interned, reference counted object per key that programs a relation
// into the dataplane while it is bound.
package binding

import (
	"context"
	"fmt"

	"github.com/veesix-networks/vppom/pkg/hw"
)

// Relation is what a binding flavour binds, e.g. an ACL on an interface in a
// direction. Key must only use fields that cannot change for the life of the
// binding.
type Relation[K comparable, R any] interface {
	fmt.Stringer
	Key() K
	// Equal compares the key fields and every referenced identity.
	Equal(other R) bool
	BindCmd(item *hw.Item[bool]) hw.Cmd
	UnbindCmd(item *hw.Item[bool]) hw.Cmd
}

type State int

const (
	StateUnbound State = iota
	StateBound
)

func (s State) String() string {
	if s == StateBound {
		return "bound"
	}
	return "unbound"
}

// Binding is the live object for one key. Obtain it through a Manager.
type Binding[K comparable, R Relation[K, R]] struct {
	mgr   *Manager[K, R]
	rel   R
	bound hw.Item[bool]
	refs  int
}

func (b *Binding[K, R]) Key() K {
	return b.rel.Key()
}

// Relation returns the relation the binding was created with. Later commits
// of the same key do not change it.
func (b *Binding[K, R]) Relation() R {
	return b.rel
}

// Bound returns a copy of the bound-state handle.
func (b *Binding[K, R]) Bound() hw.Item[bool] {
	b.mgr.mu.Lock()
	defer b.mgr.mu.Unlock()
	return b.bound
}

func (b *Binding[K, R]) State() State {
	b.mgr.mu.Lock()
	defer b.mgr.mu.Unlock()
	return b.state()
}

// state requires the manager lock.
func (b *Binding[K, R]) state() State {
	if b.bound.Ok() {
		return StateBound
	}
	return StateUnbound
}

func (b *Binding[K, R]) Equal(other *Binding[K, R]) bool {
	return b.rel.Equal(other.rel)
}

func (b *Binding[K, R]) String() string {
	return fmt.Sprintf("%s-binding:[%s %s]", b.mgr.name, b.rel, b.bound)
}

// Release drops one reference. The last one unbinds and removes the binding
// from its manager.
func (b *Binding[K, R]) Release(ctx context.Context) {
	b.mgr.release(ctx, b)
}

// update binds if not already bound.
func (b *Binding[K, R]) update(ctx context.Context) error {
	if b.bound.Ok() {
		return nil
	}
	b.mgr.q.Enqueue(b.rel.BindCmd(&b.bound))
	return b.mgr.q.Write(ctx)
}

// sweep unbinds if bound.
func (b *Binding[K, R]) sweep(ctx context.Context) error {
	if !b.bound.Ok() {
		return nil
	}
	b.mgr.q.Enqueue(b.rel.UnbindCmd(&b.bound))
	return b.mgr.q.Write(ctx)
}

// replay queues the bind again if bound and reports whether it did.
func (b *Binding[K, R]) replay() bool {
	if !b.bound.Ok() {
		return false
	}
	b.mgr.q.Enqueue(b.rel.BindCmd(&b.bound))
	return true
}
