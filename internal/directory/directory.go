package directory

import (
	"context"

	"kutumb/pkg/domain"
)

// CitizenDirectory looks up citizen roster entries.
// Returns sentinel.ErrNotFound for unknown IDs.
type CitizenDirectory interface {
	GetCitizen(ctx context.Context, id domain.CitizenID) (Citizen, error)
}

// OfficerDirectory looks up officer registry entries.
// Returns sentinel.ErrNotFound for unknown IDs.
type OfficerDirectory interface {
	GetOfficer(ctx context.Context, id domain.OfficerID) (Officer, error)
}
