// Package visit implements the field-visit lifecycle: scheduling, the
// geofence-gated check-in, completion, supervisory approval, reopening, and
// cancellation with its constrained reason taxonomy.
package visit

import (
	"time"

	"kutumb/internal/geo"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
)

// Status is a visit's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed. Approved is
// terminal absent an explicit reopen; cancelled is always terminal for the
// record (a reschedule spawns a new visit, it does not revive this one).
func (s Status) Terminal() bool {
	return s == StatusCancelled
}

// CancellationReason is the constrained taxonomy captured when a visit is
// cancelled in the field or administratively.
type CancellationReason string

const (
	// ReasonShifted: the citizen has moved away from the registered address.
	ReasonShifted CancellationReason = "Shifted"

	// ReasonPassedAway: the citizen is deceased.
	ReasonPassedAway CancellationReason = "Passed Away"

	// ReasonNotPresent: the citizen was not at home during the visit window.
	ReasonNotPresent CancellationReason = "Not Present"

	// ReasonReschedule: the visit is cancelled in favor of a new one at an
	// agreed later date.
	ReasonReschedule CancellationReason = "Reschedule"
)

// ParseCancellationReason validates a raw reason against the taxonomy.
func ParseCancellationReason(s string) (CancellationReason, error) {
	switch CancellationReason(s) {
	case ReasonShifted, ReasonPassedAway, ReasonNotPresent, ReasonReschedule:
		return CancellationReason(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown cancellation reason %q", s)
	}
}

// CancellationRecord captures why a visit was cancelled. RescheduleDate is
// set iff Reason is Reschedule.
type CancellationRecord struct {
	Reason         CancellationReason `json:"reason"`
	Notes          string             `json:"notes"`
	RescheduleDate *time.Time         `json:"reschedule_date,omitempty"`
}

// Timeline entry types, one per transition.
const (
	EntryScheduled       = "scheduled"
	EntryGeofenceChecked = "geofence_checked"
	EntryCheckin         = "checkin"
	EntryCompleted       = "completed"
	EntryApproved        = "approved"
	EntryReopened        = "reopened"
	EntryCancelled       = "cancelled"
	EntryRescheduled     = "rescheduled"
)

// TimelineEntry is one immutable history record. Timelines are append-only;
// no transition may mutate a prior entry.
type TimelineEntry struct {
	Type        string            `json:"type"`
	Timestamp   time.Time         `json:"timestamp"`
	PerformedBy domain.ActorID    `json:"performed_by"`
	Description string            `json:"description"`
	Details     map[string]string `json:"details,omitempty"`
}

// Visit is a scheduled, officer-assigned field engagement with a concrete
// citizen and time.
type Visit struct {
	ID          domain.VisitID
	CitizenID   domain.CitizenID
	OfficerID   domain.OfficerID
	RequestRef  *domain.VisitRequestID
	ScheduledAt time.Time
	VisitType   domain.VisitType
	Status      Status
	Notes       string

	CheckinAt     *time.Time
	CompletedAt   *time.Time
	ApprovedAt    *time.Time
	ApprovalNotes string

	Cancellation *CancellationRecord

	// RiskScore is derived by an external assessment on completion, 0-100.
	RiskScore *int

	// LocationUnverified marks a check-in that passed without a real distance
	// comparison because the citizen has no registered coordinates.
	LocationUnverified bool

	Timeline []TimelineEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overdue reports whether the visit is still scheduled past its planned time.
func (v Visit) Overdue(now time.Time) bool {
	return v.Status == StatusScheduled && now.After(v.ScheduledAt)
}

// Stats is the unfiltered dashboard aggregate.
type Stats struct {
	Total      int `json:"total"`
	Scheduled  int `json:"scheduled"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Approved   int `json:"approved"`
	Cancelled  int `json:"cancelled"`
	Overdue    int `json:"overdue"`
}

// GeofenceCheck is the outcome handed back by the check-in endpoint. It is
// ephemeral; only the derived timeline entries persist.
type GeofenceCheck struct {
	Evaluation geo.Evaluation `json:"evaluation"`
	CanStart   bool           `json:"can_start"`
	CanCancel  bool           `json:"can_cancel"`
}
