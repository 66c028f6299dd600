// Package singular interns one live instance per key.
package singular

import (
	"iter"
	"slices"
)

// DB maps keys to the single live instance for that key. It does no locking;
// callers serialise access.
type DB[K comparable, V comparable] struct {
	entries map[K]V
	compare func(a, b K) int
}

// New returns an empty DB whose iteration order is defined by compare.
func New[K comparable, V comparable](compare func(a, b K) int) *DB[K, V] {
	return &DB[K, V]{
		entries: make(map[K]V),
		compare: compare,
	}
}

// FindOrAdd returns the instance stored under key. If there is none, create
// is called to build one, which is stored and returned. added reports which
// of the two happened.
func (db *DB[K, V]) FindOrAdd(key K, create func() V) (v V, added bool) {
	if existing, ok := db.entries[key]; ok {
		return existing, false
	}
	v = create()
	db.entries[key] = v
	return v, true
}

func (db *DB[K, V]) Find(key K) (V, bool) {
	v, ok := db.entries[key]
	return v, ok
}

// Release removes key only if v is still the instance stored under it, so a
// late teardown of an old instance cannot evict a newer one.
func (db *DB[K, V]) Release(key K, v V) bool {
	existing, ok := db.entries[key]
	if !ok || existing != v {
		return false
	}
	delete(db.entries, key)
	return true
}

func (db *DB[K, V]) Len() int {
	return len(db.entries)
}

// Keys returns every key in order.
func (db *DB[K, V]) Keys() []K {
	keys := make([]K, 0, len(db.entries))
	for k := range db.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, db.compare)
	return keys
}

// All yields entries in key order. Entries added while iterating are not
// visited; entries released while iterating are skipped.
func (db *DB[K, V]) All() iter.Seq2[K, V] {
	keys := db.Keys()
	return func(yield func(K, V) bool) {
		for _, k := range keys {
			v, ok := db.entries[k]
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}
