package component

import "context"

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Reloader is implemented by components that can apply a new configuration
// without a restart.
type Reloader interface {
	Reload(ctx context.Context) error
}
