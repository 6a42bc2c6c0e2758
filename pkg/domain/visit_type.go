package domain

import dErrors "kutumb/pkg/domain-errors"

// VisitType classifies why a field visit happens.
// Invariant: the value must be one of the supported visit types.
//
// Usage: construct via ParseVisitType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type VisitType string

const (
	VisitTypeRoutine   VisitType = "Routine"
	VisitTypeFollowUp  VisitType = "Follow-up"
	VisitTypeEmergency VisitType = "Emergency"
)

var validVisitTypes = map[VisitType]bool{
	VisitTypeRoutine:   true,
	VisitTypeFollowUp:  true,
	VisitTypeEmergency: true,
}

// ParseVisitType constructs a VisitType from external input.
func ParseVisitType(s string) (VisitType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "visit type must not be empty")
	}
	v := VisitType(s)
	if !validVisitTypes[v] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown visit type: "+s)
	}
	return v, nil
}

func (v VisitType) IsValid() bool  { return validVisitTypes[v] }
func (v VisitType) String() string { return string(v) }

// TimeSlot is the citizen's preferred window for a requested visit.
type TimeSlot string

const (
	TimeSlotAny       TimeSlot = "Any"
	TimeSlotMorning   TimeSlot = "Morning"
	TimeSlotAfternoon TimeSlot = "Afternoon"
	TimeSlotEvening   TimeSlot = "Evening"
)

var validTimeSlots = map[TimeSlot]bool{
	TimeSlotAny:       true,
	TimeSlotMorning:   true,
	TimeSlotAfternoon: true,
	TimeSlotEvening:   true,
}

// ParseTimeSlot constructs a TimeSlot from external input. An empty value is
// accepted and normalized to TimeSlotAny: the slot is a preference, not a
// requirement.
func ParseTimeSlot(s string) (TimeSlot, error) {
	if s == "" {
		return TimeSlotAny, nil
	}
	ts := TimeSlot(s)
	if !validTimeSlots[ts] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown time slot: "+s)
	}
	return ts, nil
}

func (ts TimeSlot) IsValid() bool  { return validTimeSlots[ts] }
func (ts TimeSlot) String() string { return string(ts) }
