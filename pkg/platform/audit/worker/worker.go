package worker

import (
	"context"

	audit "kutumb/pkg/platform/audit"
)

// Apply persists or forwards a single audit event.
type Apply func(ctx context.Context, event audit.Event) error

// Worker consumes audit events from a channel and applies them. It keeps
// background processing testable without wiring queue implementations.
type Worker struct {
	apply Apply
	inbox <-chan audit.Event
}

func New(apply Apply, inbox <-chan audit.Event) *Worker {
	return &Worker{apply: apply, inbox: inbox}
}

// Run drains the inbox until the context is cancelled or the inbox closes.
// Apply errors are returned to the caller, which owns the retry policy.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.apply(ctx, event); err != nil {
				return err
			}
		}
	}
}
