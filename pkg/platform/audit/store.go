package audit

import "context"

// Store is the persistence contract for audit events. Implementations must be
// append-only; nothing in this interface can mutate a stored event.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByResource(ctx context.Context, resource string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
