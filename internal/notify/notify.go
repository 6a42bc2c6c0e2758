// Package notify delivers visit notifications to citizens and officers.
// Delivery is best-effort and fully decoupled from the lifecycle: a failed or
// slow notification never blocks or rolls back a transition.
package notify

import (
	"context"
	"time"
)

// Kind names the notification templates.
type Kind string

const (
	KindVisitScheduled   Kind = "visit_scheduled"
	KindVisitCancelled   Kind = "visit_cancelled"
	KindVisitReopened    Kind = "visit_reopened"
	KindVisitRescheduled Kind = "visit_rescheduled"
)

// Notification is one message to one recipient.
type Notification struct {
	Kind      Kind              `json:"kind"`
	Recipient string            `json:"recipient"`
	VisitID   string            `json:"visit_id"`
	Message   string            `json:"message"`
	At        time.Time         `json:"at"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sender delivers a single notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
