// Package directory exposes read access to the citizen roster and officer
// registry that the visit workflow schedules against. The records are owned
// by the registration system; this service only reads them.
package directory

import (
	"kutumb/internal/geo"
	"kutumb/pkg/domain"
)

// Citizen is a roster entry. Home is nil for citizens whose registration
// predates coordinate capture; their visits pass the geofence unverified.
type Citizen struct {
	ID      domain.CitizenID
	Name    string
	Address string
	Phone   string
	Home    *geo.Position
}

// Officer is a field officer registry entry. Inactive officers cannot be
// assigned visits.
type Officer struct {
	ID     domain.OfficerID
	Name   string
	Phone  string
	Active bool
}
