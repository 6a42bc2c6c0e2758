// Package intake manages the visit request queue: citizens (or staff on
// their behalf) file requests for a home visit, staff schedule visits from
// them, and the reconciler keeps request status in step with the visit it
// spawned.
package intake

import (
	"time"

	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
)

// RequestStatus is the queue position of a visit request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusScheduled RequestStatus = "Scheduled"
	StatusCompleted RequestStatus = "Completed"
	StatusCancelled RequestStatus = "Cancelled"
)

var validStatuses = map[RequestStatus]bool{
	StatusPending:   true,
	StatusScheduled: true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ParseRequestStatus constructs a RequestStatus from external input.
func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown request status %q", s)
	}
	return st, nil
}

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TimeSlot is the citizen's preferred window for the visit.
type TimeSlot string

const (
	SlotAny       TimeSlot = "Any"
	SlotMorning   TimeSlot = "Morning"
	SlotAfternoon TimeSlot = "Afternoon"
	SlotEvening   TimeSlot = "Evening"
)

var validSlots = map[TimeSlot]bool{
	SlotAny:       true,
	SlotMorning:   true,
	SlotAfternoon: true,
	SlotEvening:   true,
}

// ParseTimeSlot constructs a TimeSlot from external input. Empty input
// defaults to SlotAny.
func ParseTimeSlot(s string) (TimeSlot, error) {
	if s == "" {
		return SlotAny, nil
	}
	slot := TimeSlot(s)
	if !validSlots[slot] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown time slot %q", s)
	}
	return slot, nil
}

// VisitRequest is a queued ask for a home visit. Exactly one of CitizenRef
// and RegistrationRef anchors it: portal registrations may file a request
// before a citizen record exists, and scheduling is blocked until the
// request is linked to a real citizen.
type VisitRequest struct {
	ID                domain.VisitRequestID  `json:"id"`
	CitizenRef        *domain.CitizenID      `json:"citizenRef,omitempty"`
	RegistrationRef   *domain.RegistrationID `json:"registrationRef,omitempty"`
	PreferredDate     time.Time              `json:"preferredDate"`
	PreferredTimeSlot TimeSlot               `json:"preferredTimeSlot"`
	VisitType         domain.VisitType       `json:"visitType"`
	Status            RequestStatus          `json:"status"`
	Notes             string                 `json:"notes,omitempty"`
	BoundVisit        *domain.VisitID        `json:"boundVisit,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// Stats is the dashboard aggregate, always computed over the unfiltered
// collection.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}
