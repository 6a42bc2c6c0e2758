// Package domain holds shared domain primitives: typed identifiers and the
// enumerations used across the visit workflow. Typed IDs prevent cross-type
// assignment at compile time; parse functions enforce validity at trust
// boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "kutumb/pkg/domain-errors"
)

// Typed identifiers. Construct via the Parse functions at trust boundaries;
// direct casting bypasses validation.
type (
	// CitizenID identifies a registered citizen record.
	CitizenID uuid.UUID
	// RegistrationID identifies a pre-verification citizen-portal registration.
	RegistrationID uuid.UUID
	// OfficerID identifies a field officer.
	OfficerID uuid.UUID
	// VisitID identifies a scheduled field visit.
	VisitID uuid.UUID
	// VisitRequestID identifies a citizen- or staff-originated visit request.
	VisitRequestID uuid.UUID
	// ActorID identifies the authenticated user driving an operation.
	ActorID uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be the nil UUID")
	}
	return u, nil
}

func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseUUID(s, "citizen id")
	return CitizenID(u), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration id")
	return RegistrationID(u), err
}

func ParseOfficerID(s string) (OfficerID, error) {
	u, err := parseUUID(s, "officer id")
	return OfficerID(u), err
}

func ParseVisitID(s string) (VisitID, error) {
	u, err := parseUUID(s, "visit id")
	return VisitID(u), err
}

func ParseVisitRequestID(s string) (VisitRequestID, error) {
	u, err := parseUUID(s, "visit request id")
	return VisitRequestID(u), err
}

func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

// New* helpers mint fresh identifiers.

func NewCitizenID() CitizenID           { return CitizenID(uuid.New()) }
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }
func NewOfficerID() OfficerID           { return OfficerID(uuid.New()) }
func NewVisitID() VisitID               { return VisitID(uuid.New()) }
func NewVisitRequestID() VisitRequestID { return VisitRequestID(uuid.New()) }
func NewActorID() ActorID               { return ActorID(uuid.New()) }

func (id CitizenID) String() string      { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id OfficerID) String() string      { return uuid.UUID(id).String() }
func (id VisitID) String() string        { return uuid.UUID(id).String() }
func (id VisitRequestID) String() string { return uuid.UUID(id).String() }
func (id ActorID) String() string        { return uuid.UUID(id).String() }

// Text marshaling keeps IDs as canonical UUID strings in JSON payloads and
// JSONB columns.

func (id CitizenID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id RegistrationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id OfficerID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id VisitID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id VisitRequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func (id *CitizenID) UnmarshalText(b []byte) error {
	parsed, err := ParseCitizenID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParseRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OfficerID) UnmarshalText(b []byte) error {
	parsed, err := ParseOfficerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *VisitID) UnmarshalText(b []byte) error {
	parsed, err := ParseVisitID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *VisitRequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseVisitRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CitizenID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OfficerID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id VisitID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id VisitRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
