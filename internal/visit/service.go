package visit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kutumb/internal/directory"
	"kutumb/internal/gate"
	"kutumb/internal/geo"
	"kutumb/internal/notify"
	"kutumb/internal/platform/metrics"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/audit"
	"kutumb/pkg/platform/audit/publisher"
	"kutumb/pkg/platform/sentinel"
	"kutumb/pkg/requestcontext"
)

// officerLockTTL bounds the exclusivity lease around one check-in attempt.
const officerLockTTL = 15 * time.Second

// RequestSync propagates a visit cancellation back to the request it was
// scheduled from. Implemented by the intake service; wired after both
// services exist.
type RequestSync interface {
	VisitCancelled(ctx context.Context, request domain.VisitRequestID, reason CancellationReason, replacement *domain.VisitID) error
}

// Service drives the visit lifecycle. Every transition authorizes against the
// actor and role carried in the request context; there is no ambient session
// state.
type Service struct {
	store       Store
	citizens    directory.CitizenDirectory
	officers    directory.OfficerDirectory
	locks       OfficerLock
	auditor     *publisher.Publisher
	notifier    *notify.Dispatcher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	gpsTimeout  time.Duration
	requestSync RequestSync
}

func NewService(
	store Store,
	citizens directory.CitizenDirectory,
	officers directory.OfficerDirectory,
	locks OfficerLock,
	auditor *publisher.Publisher,
	notifier *notify.Dispatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
	gpsTimeout time.Duration,
) *Service {
	if gpsTimeout <= 0 {
		gpsTimeout = gate.DefaultSampleTimeout
	}
	return &Service{
		store:      store,
		citizens:   citizens,
		officers:   officers,
		locks:      locks,
		auditor:    auditor,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("kutumb/internal/visit"),
		gpsTimeout: gpsTimeout,
	}
}

// SetRequestSync wires the intake reconciler. Separate from the constructor
// because the intake service is built after this one.
func (s *Service) SetRequestSync(sync RequestSync) {
	s.requestSync = sync
}

// ScheduleParams describes a new visit.
type ScheduleParams struct {
	CitizenID   domain.CitizenID
	OfficerID   domain.OfficerID
	ScheduledAt time.Time
	VisitType   domain.VisitType
	Notes       string
	RequestRef  *domain.VisitRequestID
}

// Schedule creates a visit in Scheduled status. Requires a schedule-capable
// role, an existing citizen, and an active officer.
func (s *Service) Schedule(ctx context.Context, p ScheduleParams) (Visit, error) {
	ctx, span := s.tracer.Start(ctx, "visit.Schedule")
	defer span.End()

	if !requestcontext.Role(ctx).CanSchedule() {
		return Visit{}, dErrors.New(dErrors.CodeForbidden, "role cannot schedule visits")
	}

	now := requestcontext.Now(ctx)
	if p.ScheduledAt.IsZero() {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "scheduled time is required")
	}
	if p.ScheduledAt.Before(now.Add(-24 * time.Hour)) {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "scheduled time must not be in the past")
	}
	if _, err := domain.ParseVisitType(string(p.VisitType)); err != nil {
		return Visit{}, err
	}

	if _, err := s.citizens.GetCitizen(ctx, p.CitizenID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Visit{}, dErrors.New(dErrors.CodeValidation, "citizen does not exist").
				With("citizen_id", p.CitizenID.String())
		}
		return Visit{}, fmt.Errorf("look up citizen: %w", err)
	}
	officer, err := s.officers.GetOfficer(ctx, p.OfficerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Visit{}, dErrors.New(dErrors.CodeValidation, "officer does not exist").
				With("officer_id", p.OfficerID.String())
		}
		return Visit{}, fmt.Errorf("look up officer: %w", err)
	}
	if !officer.Active {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "officer is not active").
			With("officer_id", p.OfficerID.String())
	}

	actor := requestcontext.Actor(ctx)
	v := Visit{
		ID:          domain.NewVisitID(),
		CitizenID:   p.CitizenID,
		OfficerID:   p.OfficerID,
		RequestRef:  p.RequestRef,
		ScheduledAt: p.ScheduledAt,
		VisitType:   p.VisitType,
		Status:      StatusScheduled,
		Notes:       p.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryScheduled,
		Timestamp:   now,
		PerformedBy: actor,
		Description: fmt.Sprintf("Visit scheduled with officer %s", officer.Name),
	}, audit.ActionVisitScheduled)

	if err := s.store.Create(ctx, v); err != nil {
		return Visit{}, fmt.Errorf("create visit: %w", err)
	}

	span.SetAttributes(attribute.String("visit.id", v.ID.String()))
	s.observeTransition(string(StatusScheduled))
	s.notify(notify.KindVisitScheduled, v, fmt.Sprintf("A %s visit is scheduled for %s", v.VisitType, v.ScheduledAt.Format(time.RFC1123)))
	return v, nil
}

// CheckIn runs a gate evaluation for the assigned officer without mutating
// the visit. The client uses the outcome to decide between start, retry, and
// the cancellation sub-flow; StartVisit re-evaluates authoritatively.
func (s *Service) CheckIn(ctx context.Context, id domain.VisitID, source gate.LocationSource) (GeofenceCheck, error) {
	ctx, span := s.tracer.Start(ctx, "visit.CheckIn")
	defer span.End()

	v, err := s.get(ctx, id)
	if err != nil {
		return GeofenceCheck{}, err
	}
	if err := s.requireAssignedOfficer(ctx, v); err != nil {
		return GeofenceCheck{}, err
	}
	if v.Status != StatusScheduled {
		return GeofenceCheck{}, stalePrecondition(v, "check in")
	}

	session, err := s.newGateSession(ctx, v, source)
	if err != nil {
		return GeofenceCheck{}, err
	}
	eval, checkErr := session.Check(ctx)
	if checkErr != nil && !dErrors.HasCode(checkErr, dErrors.CodeLocation) {
		return GeofenceCheck{}, checkErr
	}
	s.observeGeofence(string(eval.Result))

	return GeofenceCheck{
		Evaluation: eval,
		CanStart:   session.CanStartVisit(),
		CanCancel:  session.CanCancel(),
	}, nil
}

// StartVisit is the single legal path into In Progress. It samples the
// officer's location, verifies proximity, enforces officer exclusivity, and
// records check-in.
func (s *Service) StartVisit(ctx context.Context, id domain.VisitID, source gate.LocationSource) (Visit, error) {
	ctx, span := s.tracer.Start(ctx, "visit.StartVisit")
	defer span.End()
	span.SetAttributes(attribute.String("visit.id", id.String()))

	v, err := s.get(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if err := s.requireAssignedOfficer(ctx, v); err != nil {
		return Visit{}, err
	}
	if v.Status != StatusScheduled {
		return Visit{}, stalePrecondition(v, "start")
	}

	session, err := s.newGateSession(ctx, v, source)
	if err != nil {
		return Visit{}, err
	}
	eval, checkErr := session.Check(ctx)
	s.observeGeofence(string(eval.Result))
	if !session.CanStartVisit() {
		s.emitCheckinDenied(ctx, v, eval)
		if checkErr != nil {
			return Visit{}, checkErr
		}
		return Visit{}, dErrors.New(dErrors.CodePrecondition, "officer is not at the citizen's location").
			With("visit_id", v.ID.String()).
			With("distance_meters", formatMeters(eval.DistanceMeters)).
			With("threshold_meters", formatMeters(eval.ThresholdMeters))
	}

	release, err := s.locks.Acquire(ctx, v.OfficerID, officerLockTTL)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Visit{}, dErrors.New(dErrors.CodeConflict, "another check-in for this officer is in flight")
		}
		return Visit{}, fmt.Errorf("acquire officer lock: %w", err)
	}
	defer release()

	busy, err := s.store.HasInProgress(ctx, v.OfficerID)
	if err != nil {
		return Visit{}, fmt.Errorf("check officer visits: %w", err)
	}
	if busy {
		return Visit{}, dErrors.New(dErrors.CodeConflict, "officer already has a visit in progress").
			With("officer_id", v.OfficerID.String())
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	v.Status = StatusInProgress
	v.CheckinAt = &now
	v.LocationUnverified = eval.Unverified
	v.UpdatedAt = now
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryGeofenceChecked,
		Timestamp:   now,
		PerformedBy: actor,
		Description: "Geofence verified",
		Details: map[string]string{
			"distance_meters":  formatMeters(eval.DistanceMeters),
			"threshold_meters": formatMeters(eval.ThresholdMeters),
			"unverified":       strconv.FormatBool(eval.Unverified),
		},
	}, audit.ActionGeofenceChecked)
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryCheckin,
		Timestamp:   now,
		PerformedBy: actor,
		Description: "Officer checked in",
		Details:     checkinDetails(ctx),
	}, audit.ActionVisitStarted)

	if err := s.transition(ctx, v, StatusScheduled); err != nil {
		return Visit{}, err
	}
	s.observeTransition(string(StatusInProgress))
	return v, nil
}

// Complete marks fieldwork done. Only the assigned officer, only from
// In Progress, and only after a recorded check-in.
func (s *Service) Complete(ctx context.Context, id domain.VisitID, notes string, riskScore *int) (Visit, error) {
	ctx, span := s.tracer.Start(ctx, "visit.Complete")
	defer span.End()

	v, err := s.get(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if err := s.requireAssignedOfficer(ctx, v); err != nil {
		return Visit{}, err
	}
	if v.Status != StatusInProgress {
		return Visit{}, stalePrecondition(v, "complete")
	}
	if v.CheckinAt == nil {
		return Visit{}, dErrors.New(dErrors.CodePrecondition, "visit has no recorded check-in").
			With("visit_id", v.ID.String())
	}
	if riskScore != nil && (*riskScore < 0 || *riskScore > 100) {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "risk score must be between 0 and 100")
	}

	now := requestcontext.Now(ctx)
	if now.Before(*v.CheckinAt) {
		now = *v.CheckinAt
	}

	v.Status = StatusCompleted
	v.CompletedAt = &now
	v.RiskScore = riskScore
	if notes != "" {
		v.Notes = notes
	}
	v.UpdatedAt = now
	details := map[string]string{}
	if riskScore != nil {
		details["risk_score"] = strconv.Itoa(*riskScore)
	}
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryCompleted,
		Timestamp:   now,
		PerformedBy: requestcontext.Actor(ctx),
		Description: "Visit completed",
		Details:     details,
	}, audit.ActionVisitCompleted)

	if err := s.transition(ctx, v, StatusInProgress); err != nil {
		return Visit{}, err
	}
	s.observeTransition(string(StatusCompleted))
	return v, nil
}

// Approve is the supervisory sign-off, only reachable from Completed.
func (s *Service) Approve(ctx context.Context, id domain.VisitID, notes string) (Visit, error) {
	ctx, span := s.tracer.Start(ctx, "visit.Approve")
	defer span.End()

	if !requestcontext.Role(ctx).CanSupervise() {
		return Visit{}, dErrors.New(dErrors.CodeForbidden, "only a supervisor can approve visits")
	}

	v, err := s.get(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if v.Status != StatusCompleted {
		return Visit{}, stalePrecondition(v, "approve")
	}

	now := requestcontext.Now(ctx)
	v.Status = StatusApproved
	v.ApprovedAt = &now
	v.ApprovalNotes = notes
	v.UpdatedAt = now
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryApproved,
		Timestamp:   now,
		PerformedBy: requestcontext.Actor(ctx),
		Description: "Visit approved",
	}, audit.ActionVisitApproved)

	if err := s.transition(ctx, v, StatusCompleted); err != nil {
		return Visit{}, err
	}
	s.observeTransition(string(StatusApproved))
	return v, nil
}

// Reopen returns an Approved visit to Scheduled for correction. The prior
// check-in and approval survive only in the timeline.
func (s *Service) Reopen(ctx context.Context, id domain.VisitID, reason string) (Visit, error) {
	ctx, span := s.tracer.Start(ctx, "visit.Reopen")
	defer span.End()

	if !requestcontext.Role(ctx).CanSupervise() {
		return Visit{}, dErrors.New(dErrors.CodeForbidden, "only a supervisor can reopen visits")
	}
	if reason == "" {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "reopen reason is required")
	}

	v, err := s.get(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if v.Status != StatusApproved {
		return Visit{}, stalePrecondition(v, "reopen")
	}

	now := requestcontext.Now(ctx)
	v.Status = StatusScheduled
	v.CheckinAt = nil
	v.CompletedAt = nil
	v.ApprovedAt = nil
	v.ApprovalNotes = ""
	v.RiskScore = nil
	v.LocationUnverified = false
	v.UpdatedAt = now
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryReopened,
		Timestamp:   now,
		PerformedBy: requestcontext.Actor(ctx),
		Description: "Visit reopened: " + reason,
		Details:     map[string]string{"reason": reason},
	}, audit.ActionVisitReopened)

	if err := s.transition(ctx, v, StatusApproved); err != nil {
		return Visit{}, err
	}
	s.observeTransition(string(StatusScheduled))
	s.notify(notify.KindVisitReopened, v, "Your visit has been reopened and will be repeated")
	return v, nil
}

// CancelParams captures the cancellation sub-flow input.
type CancelParams struct {
	Reason         CancellationReason
	Notes          string
	RescheduleDate *time.Time
}

// Cancel ends a Scheduled or In Progress visit with a taxonomy reason. An
// officer cancelling in the field must hold a passing gate evaluation
// (cancellation is unreachable off-site); admin and staff may cancel
// administratively without one. Reason Reschedule spawns a replacement visit
// and leaves this one Cancelled.
func (s *Service) Cancel(ctx context.Context, id domain.VisitID, p CancelParams, source gate.LocationSource) (Visit, error) {
	ctx, span := s.tracer.Start(ctx, "visit.Cancel")
	defer span.End()

	if _, err := ParseCancellationReason(string(p.Reason)); err != nil {
		return Visit{}, err
	}
	if p.Notes == "" {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "cancellation notes are required")
	}
	if p.Reason == ReasonReschedule && p.RescheduleDate == nil {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "reschedule date is required when reason is Reschedule")
	}
	if p.Reason != ReasonReschedule && p.RescheduleDate != nil {
		return Visit{}, dErrors.New(dErrors.CodeValidation, "reschedule date is only valid with reason Reschedule")
	}

	v, err := s.get(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if v.Status != StatusScheduled && v.Status != StatusInProgress {
		return Visit{}, stalePrecondition(v, "cancel")
	}

	role := requestcontext.Role(ctx)
	switch {
	case role.CanCancelAdministratively():
		// No gate requirement for administrative cancellation.
	default:
		if err := s.requireAssignedOfficer(ctx, v); err != nil {
			return Visit{}, err
		}
		session, err := s.newGateSession(ctx, v, source)
		if err != nil {
			return Visit{}, err
		}
		eval, checkErr := session.Check(ctx)
		s.observeGeofence(string(eval.Result))
		if !session.CanCancel() {
			if checkErr != nil {
				return Visit{}, checkErr
			}
			return Visit{}, dErrors.New(dErrors.CodePrecondition, "cancellation requires being at the citizen's location").
				With("distance_meters", formatMeters(eval.DistanceMeters))
		}
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	prior := v.Status

	v.Status = StatusCancelled
	v.Cancellation = &CancellationRecord{
		Reason:         p.Reason,
		Notes:          p.Notes,
		RescheduleDate: p.RescheduleDate,
	}
	v.UpdatedAt = now
	s.appendEntry(ctx, &v, TimelineEntry{
		Type:        EntryCancelled,
		Timestamp:   now,
		PerformedBy: actor,
		Description: fmt.Sprintf("Visit cancelled: %s", p.Reason),
		Details:     map[string]string{"reason": string(p.Reason), "notes": p.Notes},
	}, audit.ActionVisitCancelled)

	var replacement *Visit
	if p.Reason == ReasonReschedule {
		r := Visit{
			ID:          domain.NewVisitID(),
			CitizenID:   v.CitizenID,
			OfficerID:   v.OfficerID,
			RequestRef:  v.RequestRef,
			ScheduledAt: *p.RescheduleDate,
			VisitType:   v.VisitType,
			Status:      StatusScheduled,
			Notes:       fmt.Sprintf("Rescheduled from visit %s", v.ID),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.appendEntry(ctx, &r, TimelineEntry{
			Type:        EntryScheduled,
			Timestamp:   now,
			PerformedBy: actor,
			Description: fmt.Sprintf("Visit rescheduled from %s", v.ID),
		}, audit.ActionVisitRescheduled)
		s.appendEntry(ctx, &v, TimelineEntry{
			Type:        EntryRescheduled,
			Timestamp:   now,
			PerformedBy: actor,
			Description: fmt.Sprintf("Replacement visit %s created for %s", r.ID, p.RescheduleDate.Format(time.RFC1123)),
			Details:     map[string]string{"replacement_visit_id": r.ID.String()},
		}, audit.ActionVisitRescheduled)
		replacement = &r
	}

	if err := s.transition(ctx, v, prior); err != nil {
		return Visit{}, err
	}
	s.observeTransition(string(StatusCancelled))

	if replacement != nil {
		if err := s.store.Create(ctx, *replacement); err != nil {
			// The cancellation has committed; surface the orphaned reschedule
			// rather than pretending it worked.
			return Visit{}, dErrors.New(dErrors.CodeReconciliation, "visit cancelled but replacement could not be created").
				With("visit_id", v.ID.String())
		}
		s.observeTransition(string(StatusScheduled))
		s.notify(notify.KindVisitRescheduled, *replacement, fmt.Sprintf("Your visit was rescheduled to %s", replacement.ScheduledAt.Format(time.RFC1123)))
	} else {
		s.notify(notify.KindVisitCancelled, v, fmt.Sprintf("Your visit was cancelled (%s)", p.Reason))
	}

	s.syncRequest(ctx, v, replacement)
	return v, nil
}

// Get returns one visit.
func (s *Service) Get(ctx context.Context, id domain.VisitID) (Visit, error) {
	return s.get(ctx, id)
}

// List returns visits matching the filter, ordered by scheduled time.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Visit, error) {
	return s.store.List(ctx, filter)
}

// Stats aggregates over the full unfiltered collection. Dashboards issue this
// separately from any filtered list so totals never reflect the filter.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate visits: %w", err)
	}

	stats := Stats{
		Scheduled:  counts[StatusScheduled],
		InProgress: counts[StatusInProgress],
		Completed:  counts[StatusCompleted],
		Approved:   counts[StatusApproved],
		Cancelled:  counts[StatusCancelled],
	}
	stats.Total = stats.Scheduled + stats.InProgress + stats.Completed + stats.Approved + stats.Cancelled

	now := requestcontext.Now(ctx)
	scheduled := StatusScheduled
	pending, err := s.store.List(ctx, ListFilter{Status: &scheduled, To: &now})
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate overdue visits: %w", err)
	}
	for _, v := range pending {
		if v.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

// Calendar groups visits scheduled in [from, to] by day.
func (s *Service) Calendar(ctx context.Context, from, to time.Time) (map[string][]Visit, error) {
	if to.Before(from) {
		return nil, dErrors.New(dErrors.CodeValidation, "calendar range end precedes start")
	}
	visits, err := s.store.List(ctx, ListFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	byDay := make(map[string][]Visit)
	for _, v := range visits {
		day := v.ScheduledAt.Format("2006-01-02")
		byDay[day] = append(byDay[day], v)
	}
	return byDay, nil
}

// Timeline returns the visit's audit trail as recorded by the sink.
func (s *Service) Timeline(ctx context.Context, id domain.VisitID) ([]TimelineEntry, error) {
	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return v.Timeline, nil
}

func (s *Service) get(ctx context.Context, id domain.VisitID) (Visit, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Visit{}, dErrors.New(dErrors.CodeNotFound, "visit not found").
				With("visit_id", id.String())
		}
		return Visit{}, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (s *Service) transition(ctx context.Context, v Visit, from Status) error {
	if err := s.store.Transition(ctx, v, from); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "visit changed concurrently, refetch and retry").
				With("visit_id", v.ID.String()).
				With("expected_status", string(from))
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "visit not found").
				With("visit_id", v.ID.String())
		}
		return fmt.Errorf("persist transition: %w", err)
	}
	return nil
}

// requireAssignedOfficer enforces officer ownership: the officer named on the
// visit is the only actor allowed to drive check-in, completion, and field
// cancellation.
func (s *Service) requireAssignedOfficer(ctx context.Context, v Visit) error {
	actor := requestcontext.Actor(ctx)
	if domain.OfficerID(actor) != v.OfficerID {
		return dErrors.New(dErrors.CodeForbidden, "only the assigned officer may perform this action").
			With("visit_id", v.ID.String())
	}
	officer, err := s.officers.GetOfficer(ctx, v.OfficerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "assigned officer is no longer registered")
		}
		return fmt.Errorf("look up officer: %w", err)
	}
	if !officer.Active {
		return dErrors.New(dErrors.CodeForbidden, "assigned officer is not active")
	}
	return nil
}

func (s *Service) newGateSession(ctx context.Context, v Visit, source gate.LocationSource) (*gate.Session, error) {
	if source == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a location source is required")
	}
	citizen, err := s.citizens.GetCitizen(ctx, v.CitizenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodePrecondition, "citizen record no longer exists").
				With("citizen_id", v.CitizenID.String())
		}
		return nil, fmt.Errorf("look up citizen: %w", err)
	}
	return gate.NewSession(source, citizen.Home, gate.WithSampleTimeout(s.gpsTimeout)), nil
}

// appendEntry records an immutable timeline entry and forwards it to the
// audit sink.
func (s *Service) appendEntry(ctx context.Context, v *Visit, entry TimelineEntry, action audit.Action) {
	v.Timeline = append(v.Timeline, entry)
	s.emitAudit(ctx, *v, entry, action)
}

func (s *Service) emitAudit(ctx context.Context, v Visit, entry TimelineEntry, action audit.Action) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp: entry.Timestamp,
		Actor:     entry.PerformedBy.String(),
		Action:    string(action),
		Resource:  "Visit:" + v.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Details:   entry.Details,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"error", err,
			"visit_id", v.ID.String(),
			"action", string(action),
		)
	}
}

func (s *Service) emitCheckinDenied(ctx context.Context, v Visit, eval geo.Evaluation) {
	if s.auditor == nil {
		return
	}
	details := map[string]string{
		"result":           string(eval.Result),
		"distance_meters":  formatMeters(eval.DistanceMeters),
		"threshold_meters": formatMeters(eval.ThresholdMeters),
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.Actor(ctx).String(),
		Action:    string(audit.ActionCheckinDenied),
		Resource:  "Visit:" + v.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Details:   details,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "error", err, "visit_id", v.ID.String())
	}
}

func (s *Service) syncRequest(ctx context.Context, v Visit, replacement *Visit) {
	if s.requestSync == nil || v.RequestRef == nil {
		return
	}
	var newID *domain.VisitID
	if replacement != nil {
		id := replacement.ID
		newID = &id
	}
	if err := s.requestSync.VisitCancelled(ctx, *v.RequestRef, v.Cancellation.Reason, newID); err != nil {
		s.logger.ErrorContext(ctx, "request sync failed",
			"error", err,
			"visit_id", v.ID.String(),
			"request_id", v.RequestRef.String(),
		)
	}
}

func (s *Service) notify(kind notify.Kind, v Visit, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(notify.Notification{
		Kind:      kind,
		Recipient: v.CitizenID.String(),
		VisitID:   v.ID.String(),
		Message:   message,
		At:        time.Now().UTC(),
	})
}

func (s *Service) observeTransition(status string) {
	if s.metrics != nil {
		s.metrics.ObserveVisitTransition(status)
	}
}

func (s *Service) observeGeofence(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveGeofence(outcome)
	}
}

func stalePrecondition(v Visit, verb string) error {
	return dErrors.Newf(dErrors.CodePrecondition, "cannot %s a visit in status %q", verb, v.Status).
		With("visit_id", v.ID.String()).
		With("current_status", string(v.Status))
}

func formatMeters(m float64) string {
	return strconv.FormatFloat(m, 'f', 1, 64)
}

func checkinDetails(ctx context.Context) map[string]string {
	details := map[string]string{}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		details["client_ip"] = ip
	}
	if device := requestcontext.DeviceName(ctx); device != "" {
		details["device"] = device
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
