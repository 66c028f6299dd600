// Package opdb journals what has been programmed into the dataplane so it can
// be inspected without a dataplane connection.
package opdb

import "context"

// Store keeps one record per bound binding, keyed by flavour and binding key.
type Store interface {
	Put(ctx context.Context, r Record) error
	Delete(ctx context.Context, flavour, key string) error
	// List returns the records of flavour, or of every flavour when it is
	// empty, ordered by flavour then key.
	List(ctx context.Context, flavour string) ([]Record, error)
	Flavours(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, flavour string) error
	Close() error
}

// Record is the journal entry written for a bound binding.
type Record struct {
	Flavour string `json:"flavour"`
	Key     string `json:"key"`
	Binding string `json:"binding"`
	State   string `json:"state"`
}
