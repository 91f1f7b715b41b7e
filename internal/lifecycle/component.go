package lifecycle

import "context"

// Component is anything the manager can start and stop: the player store,
// the webhook server, the sync scheduler, the hot-reload watcher.
type Component interface {
	// Name identifies the component in logs and errors.
	Name() string

	// Start brings the component up. The context bounds initialization.
	Start(ctx context.Context) error

	// Stop shuts the component down, completing in-flight work within the
	// context deadline.
	Stop(ctx context.Context) error
}
