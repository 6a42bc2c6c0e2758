package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kutumb/internal/directory"
	"kutumb/internal/platform/metrics"
	"kutumb/internal/visit"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/audit"
	"kutumb/pkg/platform/audit/publisher"
	"kutumb/pkg/platform/sentinel"
	"kutumb/pkg/requestcontext"
)

// allowedTransitions is the request status machine. Scheduled additionally
// requires a bound visit, and Completed requires that visit to be completed
// or approved; those guards live in UpdateStatus.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:   {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled},
}

// Service manages the visit request queue and reconciles it against the
// visits scheduled from it.
type Service struct {
	store    Store
	visits   *visit.Service
	citizens directory.CitizenDirectory
	auditor  *publisher.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(
	store Store,
	visits *visit.Service,
	citizens directory.CitizenDirectory,
	auditor *publisher.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		visits:   visits,
		citizens: citizens,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kutumb/internal/intake"),
	}
}

// CreateParams describes a new visit request. Exactly one of CitizenRef and
// RegistrationRef must be set.
type CreateParams struct {
	CitizenRef        *domain.CitizenID
	RegistrationRef   *domain.RegistrationID
	PreferredDate     time.Time
	PreferredTimeSlot string
	VisitType         domain.VisitType
	Notes             string
}

// CreateRequest files a request in Pending status.
func (s *Service) CreateRequest(ctx context.Context, p CreateParams) (VisitRequest, error) {
	ctx, span := s.tracer.Start(ctx, "intake.CreateRequest")
	defer span.End()

	if (p.CitizenRef == nil) == (p.RegistrationRef == nil) {
		return VisitRequest{}, dErrors.New(dErrors.CodeValidation,
			"exactly one of citizenRef and registrationRef is required")
	}
	if p.PreferredDate.IsZero() {
		return VisitRequest{}, dErrors.New(dErrors.CodeValidation, "preferred date is required")
	}
	slot, err := ParseTimeSlot(p.PreferredTimeSlot)
	if err != nil {
		return VisitRequest{}, err
	}
	if _, err := domain.ParseVisitType(string(p.VisitType)); err != nil {
		return VisitRequest{}, err
	}
	if p.CitizenRef != nil {
		if _, err := s.citizens.GetCitizen(ctx, *p.CitizenRef); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return VisitRequest{}, dErrors.New(dErrors.CodeValidation, "citizen does not exist").
					With("citizen_id", p.CitizenRef.String())
			}
			return VisitRequest{}, fmt.Errorf("look up citizen: %w", err)
		}
	}

	now := requestcontext.Now(ctx)
	r := VisitRequest{
		ID:                domain.NewVisitRequestID(),
		CitizenRef:        p.CitizenRef,
		RegistrationRef:   p.RegistrationRef,
		PreferredDate:     p.PreferredDate,
		PreferredTimeSlot: slot,
		VisitType:         p.VisitType,
		Status:            StatusPending,
		Notes:             p.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return VisitRequest{}, fmt.Errorf("create visit request: %w", err)
	}

	span.SetAttributes(attribute.String("request.id", r.ID.String()))
	s.emitAudit(ctx, r, audit.ActionRequestCreated, map[string]string{
		"visit_type": string(r.VisitType),
		"time_slot":  string(r.PreferredTimeSlot),
	})
	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	return r, nil
}

// UpdateStatus moves a request along the queue. Pending may become Scheduled
// or Cancelled; Scheduled may become Completed or Cancelled. A request never
// reports Completed until its bound visit is completed or approved.
func (s *Service) UpdateStatus(ctx context.Context, id domain.VisitRequestID, status RequestStatus) (VisitRequest, error) {
	ctx, span := s.tracer.Start(ctx, "intake.UpdateStatus")
	defer span.End()

	if !requestcontext.Role(ctx).CanSchedule() {
		return VisitRequest{}, dErrors.New(dErrors.CodeForbidden, "role cannot manage visit requests")
	}
	if !validStatuses[status] {
		return VisitRequest{}, dErrors.Newf(dErrors.CodeValidation, "unknown request status %q", status)
	}

	r, err := s.get(ctx, id)
	if err != nil {
		return VisitRequest{}, err
	}
	if !transitionAllowed(r.Status, status) {
		return VisitRequest{}, dErrors.Newf(dErrors.CodePrecondition,
			"request cannot move from %s to %s", r.Status, status).
			With("request_id", r.ID.String())
	}
	if status == StatusScheduled && r.BoundVisit == nil {
		return VisitRequest{}, dErrors.New(dErrors.CodePrecondition,
			"request has no visit scheduled from it; use the schedule operation").
			With("request_id", r.ID.String())
	}
	if status == StatusCompleted {
		if err := s.requireVisitFinished(ctx, r); err != nil {
			return VisitRequest{}, err
		}
	}

	from := r.Status
	r.Status = status
	r.UpdatedAt = requestcontext.Now(ctx)
	if err := s.transition(ctx, r, from); err != nil {
		return VisitRequest{}, err
	}

	s.emitAudit(ctx, r, audit.ActionRequestStatusChanged, map[string]string{
		"from": string(from),
		"to":   string(status),
	})
	return r, nil
}

// ScheduleVisitParams names the officer and time for a visit scheduled from
// a request. An empty VisitType inherits the request's.
type ScheduleVisitParams struct {
	OfficerID   domain.OfficerID
	ScheduledAt time.Time
	VisitType   domain.VisitType
	Notes       string
}

// ScheduleFromRequest creates a visit for a pending request and marks the
// request Scheduled. The visit is created first; if the request update then
// fails, the error carries the created visit ID under a distinct
// reconciliation code so operators retry the request update instead of
// scheduling a duplicate visit.
func (s *Service) ScheduleFromRequest(ctx context.Context, id domain.VisitRequestID, p ScheduleVisitParams) (visit.Visit, error) {
	ctx, span := s.tracer.Start(ctx, "intake.ScheduleFromRequest")
	defer span.End()

	r, err := s.get(ctx, id)
	if err != nil {
		return visit.Visit{}, err
	}
	if r.Status != StatusPending {
		return visit.Visit{}, dErrors.Newf(dErrors.CodePrecondition,
			"request is %s, only pending requests can be scheduled", r.Status).
			With("request_id", r.ID.String())
	}
	if r.CitizenRef == nil {
		return visit.Visit{}, dErrors.New(dErrors.CodePrecondition,
			"request is not yet linked to a citizen record").
			With("request_id", r.ID.String())
	}

	visitType := p.VisitType
	if visitType == "" {
		visitType = r.VisitType
	}
	requestRef := r.ID
	v, err := s.visits.Schedule(ctx, visit.ScheduleParams{
		CitizenID:   *r.CitizenRef,
		OfficerID:   p.OfficerID,
		ScheduledAt: p.ScheduledAt,
		VisitType:   visitType,
		Notes:       p.Notes,
		RequestRef:  &requestRef,
	})
	if err != nil {
		return visit.Visit{}, err
	}

	boundVisit := v.ID
	from := r.Status
	r.Status = StatusScheduled
	r.BoundVisit = &boundVisit
	r.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Transition(ctx, r, from); err != nil {
		s.observeReconciliation("failed")
		s.logger.ErrorContext(ctx, "request update failed after visit creation",
			"error", err,
			"request_id", r.ID.String(),
			"visit_id", v.ID.String(),
		)
		return v, dErrors.New(dErrors.CodeReconciliation,
			"visit was created but the request could not be marked scheduled; retry the request update").
			With("request_id", r.ID.String()).
			With("visit_id", v.ID.String())
	}
	s.observeReconciliation("ok")

	span.SetAttributes(attribute.String("visit.id", v.ID.String()))
	s.emitAudit(ctx, r, audit.ActionRequestStatusChanged, map[string]string{
		"from":     string(from),
		"to":       string(StatusScheduled),
		"visit_id": v.ID.String(),
	})
	return v, nil
}

// VisitCancelled reconciles a request with the cancellation of the visit
// scheduled from it. A reschedule keeps the request Scheduled and rebinds it
// to the replacement visit; every other reason cancels the request.
func (s *Service) VisitCancelled(ctx context.Context, id domain.VisitRequestID, reason visit.CancellationReason, replacement *domain.VisitID) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status.Terminal() {
		return nil
	}

	from := r.Status
	details := map[string]string{"from": string(from), "reason": string(reason)}
	if reason == visit.ReasonReschedule {
		r.BoundVisit = replacement
		details["to"] = string(r.Status)
		if replacement != nil {
			details["visit_id"] = replacement.String()
		}
	} else {
		r.Status = StatusCancelled
		details["to"] = string(StatusCancelled)
	}
	r.UpdatedAt = requestcontext.Now(ctx)
	if err := s.transition(ctx, r, from); err != nil {
		return err
	}

	s.emitAudit(ctx, r, audit.ActionRequestStatusChanged, details)
	return nil
}

func (s *Service) Get(ctx context.Context, id domain.VisitRequestID) (VisitRequest, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]VisitRequest, error) {
	return s.store.List(ctx, filter)
}

// Stats aggregates over the full collection regardless of any list filter
// in effect on the caller's view.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate request counts: %w", err)
	}
	stats := Stats{
		Pending:   counts[StatusPending],
		Scheduled: counts[StatusScheduled],
		Completed: counts[StatusCompleted],
		Cancelled: counts[StatusCancelled],
	}
	stats.Total = stats.Pending + stats.Scheduled + stats.Completed + stats.Cancelled
	return stats, nil
}

func (s *Service) get(ctx context.Context, id domain.VisitRequestID) (VisitRequest, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return VisitRequest{}, dErrors.New(dErrors.CodeNotFound, "visit request not found").
				With("request_id", id.String())
		}
		return VisitRequest{}, fmt.Errorf("get visit request: %w", err)
	}
	return r, nil
}

func (s *Service) transition(ctx context.Context, r VisitRequest, from RequestStatus) error {
	err := s.store.Transition(ctx, r, from)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "visit request not found").
			With("request_id", r.ID.String())
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "request changed concurrently, refetch and retry").
			With("request_id", r.ID.String())
	default:
		return fmt.Errorf("transition visit request: %w", err)
	}
}

func transitionAllowed(from, to RequestStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) requireVisitFinished(ctx context.Context, r VisitRequest) error {
	if r.BoundVisit == nil {
		return dErrors.New(dErrors.CodePrecondition, "request has no visit bound to it").
			With("request_id", r.ID.String())
	}
	v, err := s.visits.Get(ctx, *r.BoundVisit)
	if err != nil {
		return fmt.Errorf("look up bound visit: %w", err)
	}
	if v.Status != visit.StatusCompleted && v.Status != visit.StatusApproved {
		return dErrors.Newf(dErrors.CodePrecondition,
			"bound visit is %s, not completed", v.Status).
			With("request_id", r.ID.String()).
			With("visit_id", v.ID.String())
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, r VisitRequest, action audit.Action, details map[string]string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.Actor(ctx).String(),
		Action:    string(action),
		Resource:  "VisitRequest:" + r.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Details:   details,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"error", err,
			"request_id", r.ID.String(),
			"action", string(action),
		)
	}
}

func (s *Service) observeReconciliation(result string) {
	if s.metrics != nil {
		s.metrics.ObserveReconciliation(result)
	}
}
