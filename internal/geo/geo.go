// Package geo evaluates officer proximity to a citizen's registered home
// location. Distances use the haversine formula on a spherical Earth model,
// which is accurate to well under a meter at geofence scale.
package geo

import "math"

const (
	// DefaultThresholdMeters is the geofence radius. An officer within this
	// distance of the citizen's registered coordinates may check in.
	DefaultThresholdMeters = 40.0

	// earthRadiusMeters is the mean Earth radius used by the haversine
	// computation.
	earthRadiusMeters = 6371000.0
)

// Position is a WGS84 coordinate pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Result classifies a proximity evaluation.
type Result string

const (
	ResultInRange    Result = "in_range"
	ResultOutOfRange Result = "out_of_range"
	ResultError      Result = "error"
)

// Evaluation is the full outcome of a proximity check. Unverified marks
// evaluations that passed without a real distance comparison because the
// citizen has no registered coordinates.
type Evaluation struct {
	Result          Result  `json:"result"`
	DistanceMeters  float64 `json:"distance_meters"`
	ThresholdMeters float64 `json:"threshold_meters"`
	Unverified      bool    `json:"unverified"`
}

// InRange reports whether the evaluation allows a check-in.
func (e Evaluation) InRange() bool {
	return e.Result == ResultInRange
}

// Evaluate compares an officer's position against the citizen's registered
// home coordinates. A non-positive threshold falls back to the default.
//
// A nil officer position means the device produced no fix and the check
// cannot resolve. A citizen without registered coordinates cannot be
// geofenced, so the visit proceeds flagged as unverified rather than blocking
// field work.
func Evaluate(officer, citizen *Position, thresholdMeters float64) Evaluation {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}

	if officer == nil {
		return Evaluation{Result: ResultError, ThresholdMeters: thresholdMeters}
	}
	if citizen == nil {
		return Evaluation{
			Result:          ResultInRange,
			ThresholdMeters: thresholdMeters,
			Unverified:      true,
		}
	}

	distance := Distance(*officer, *citizen)
	result := ResultOutOfRange
	if distance <= thresholdMeters {
		result = ResultInRange
	}
	return Evaluation{
		Result:          result,
		DistanceMeters:  distance,
		ThresholdMeters: thresholdMeters,
	}
}

// Distance returns the great-circle distance between two positions in meters.
func Distance(a, b Position) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
