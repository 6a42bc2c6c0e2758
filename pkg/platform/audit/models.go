// Package audit defines the append-only audit record emitted for every
// lifecycle transition. Events are transport-agnostic so stores and sinks can
// fan out.
package audit

import "time"

// Category classifies audit events by their primary purpose. This enables
// different retention policies, storage backends, and routing.
type Category string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every visit lifecycle transition and cancellation. These require
	// tamper-proof storage and long retention.
	CategoryCompliance Category = "compliance"

	// CategorySecurity covers events relevant to monitoring and forensics,
	// such as denied check-in attempts.
	CategorySecurity Category = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations Category = "operations"
)

// Event mirrors a timeline entry as seen by the audit sink:
// {actor, action, resource, timestamp, details}.
type Event struct {
	Category  Category
	Timestamp time.Time
	Actor     string
	Action    string
	Resource  string
	RequestID string
	Details   map[string]string
}

// Action names every auditable operation in the visit workflow.
type Action string

const (
	ActionVisitScheduled   Action = "visit_scheduled"
	ActionGeofenceChecked  Action = "visit_geofence_checked"
	ActionVisitStarted     Action = "visit_checkin"
	ActionVisitCompleted   Action = "visit_completed"
	ActionVisitApproved    Action = "visit_approved"
	ActionVisitReopened    Action = "visit_reopened"
	ActionVisitCancelled   Action = "visit_cancelled"
	ActionVisitRescheduled Action = "visit_rescheduled"
	ActionCheckinDenied    Action = "visit_checkin_denied"

	ActionRequestCreated       Action = "visit_request_created"
	ActionRequestStatusChanged Action = "visit_request_status_changed"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]Category{
	ActionVisitScheduled:   CategoryCompliance,
	ActionVisitStarted:     CategoryCompliance,
	ActionVisitCompleted:   CategoryCompliance,
	ActionVisitApproved:    CategoryCompliance,
	ActionVisitReopened:    CategoryCompliance,
	ActionVisitCancelled:   CategoryCompliance,
	ActionVisitRescheduled: CategoryCompliance,

	ActionCheckinDenied: CategorySecurity,

	ActionGeofenceChecked:      CategoryOperations,
	ActionRequestCreated:       CategoryOperations,
	ActionRequestStatusChanged: CategoryOperations,
}

// Category returns the category for this action. Unknown actions default to
// CategoryOperations.
func (a Action) Category() Category {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
