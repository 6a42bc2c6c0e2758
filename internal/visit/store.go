package visit

import (
	"context"
	"time"

	"kutumb/pkg/domain"
)

// ListFilter narrows List results. Nil fields match everything. Stats are
// never computed from a filtered list; they always come from Counts.
type ListFilter struct {
	Status    *Status
	OfficerID *domain.OfficerID
	CitizenID *domain.CitizenID
	From      *time.Time
	To        *time.Time
}

// Store persists visits.
//
// Transition is a compare-and-swap: it writes the updated visit only if the
// stored status still equals from, returning sentinel.ErrConflict otherwise.
// That makes every lifecycle transition last-writer-detectable under
// concurrent attempts.
type Store interface {
	Create(ctx context.Context, v Visit) error
	Get(ctx context.Context, id domain.VisitID) (Visit, error)
	List(ctx context.Context, filter ListFilter) ([]Visit, error)
	Transition(ctx context.Context, v Visit, from Status) error

	// HasInProgress reports whether the officer currently has any visit in
	// progress. Used with OfficerLock to enforce officer exclusivity.
	HasInProgress(ctx context.Context, officer domain.OfficerID) (bool, error)

	// Counts aggregates status totals over the full unfiltered collection.
	Counts(ctx context.Context) (map[Status]int, error)
}
