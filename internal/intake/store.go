package intake

import (
	"context"

	"kutumb/pkg/domain"
)

// ListFilter narrows List. Nil fields match everything.
type ListFilter struct {
	Status     *RequestStatus
	CitizenRef *domain.CitizenID
}

// Store persists visit requests.
//
// Transition is a compare-and-swap on the prior status: it persists r only
// if the stored request still has status from, returning
// sentinel.ErrConflict otherwise. Rebinding the visit on a reschedule uses
// from == r.Status.
type Store interface {
	Create(ctx context.Context, r VisitRequest) error
	Get(ctx context.Context, id domain.VisitRequestID) (VisitRequest, error)
	List(ctx context.Context, filter ListFilter) ([]VisitRequest, error)
	Transition(ctx context.Context, r VisitRequest, from RequestStatus) error
	Counts(ctx context.Context) (map[RequestStatus]int, error)
}
