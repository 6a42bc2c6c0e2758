// Package gate implements the check-in gate that stands between an officer's
// device and the visit lifecycle. A gate session samples the device location,
// evaluates proximity against the citizen's registered coordinates, and only
// unlocks check-in (and cancellation) while the officer is verifiably at the
// home.
package gate

import (
	"context"
	"time"

	"kutumb/internal/geo"
	dErrors "kutumb/pkg/domain-errors"
)

// LocationSource yields the device's current position. Implementations wrap
// the platform GPS API, a mobile client relay, or a test stub.
type LocationSource interface {
	CurrentPosition(ctx context.Context) (geo.Position, error)
}

// State is the session's gate state.
type State string

const (
	// StateChecking means a location sample is in flight. Check-in and
	// cancellation are both locked.
	StateChecking State = "checking"

	// StateInRange unlocks check-in and cancellation.
	StateInRange State = "in_range"

	// StateOutOfRange keeps the gate locked; the officer may retry after
	// moving.
	StateOutOfRange State = "out_of_range"

	// StateError means the device produced no usable fix (GPS off, permission
	// denied, timeout). The gate stays locked until an explicit retry.
	StateError State = "error"
)

// DefaultSampleTimeout bounds how long one location sample may take. A device
// that cannot produce a fix within it resolves to StateError, never to a
// stale pass.
const DefaultSampleTimeout = 10 * time.Second

// Session is one officer's gate for one visit. Not safe for concurrent use;
// a session belongs to a single request flow.
type Session struct {
	source    LocationSource
	citizen   *geo.Position
	threshold float64
	timeout   time.Duration

	state State
	eval  geo.Evaluation
	err   error
}

// Option configures a Session.
type Option func(*Session)

// WithSampleTimeout overrides the location sample timeout.
func WithSampleTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithThreshold overrides the geofence radius in meters.
func WithThreshold(meters float64) Option {
	return func(s *Session) { s.threshold = meters }
}

// NewSession builds a gate session for a citizen's registered coordinates.
// A nil citizen position is allowed; the evaluation passes unverified.
func NewSession(source LocationSource, citizen *geo.Position, opts ...Option) *Session {
	s := &Session{
		source:    source,
		citizen:   citizen,
		threshold: geo.DefaultThresholdMeters,
		timeout:   DefaultSampleTimeout,
		state:     StateChecking,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current gate state.
func (s *Session) State() State {
	return s.state
}

// Evaluation returns the last completed proximity evaluation. Zero value
// until a Check resolves.
func (s *Session) Evaluation() geo.Evaluation {
	return s.eval
}

// Err returns the location failure behind StateError, nil otherwise.
func (s *Session) Err() error {
	return s.err
}

// Check samples the location source once and transitions the session.
// A caller-cancelled context aborts without mutating the session so a
// navigation-away mid-check leaves no half-applied state.
func (s *Session) Check(ctx context.Context) (geo.Evaluation, error) {
	sampleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pos, err := s.source.CurrentPosition(sampleCtx)
	if ctx.Err() != nil {
		return geo.Evaluation{}, ctx.Err()
	}
	if err != nil {
		s.state = StateError
		s.eval = geo.Evaluation{Result: geo.ResultError, ThresholdMeters: s.threshold}
		s.err = dErrors.New(dErrors.CodeLocation, "could not determine current location").
			With("cause", err.Error())
		return s.eval, s.err
	}

	s.err = nil
	s.eval = geo.Evaluate(&pos, s.citizen, s.threshold)
	switch s.eval.Result {
	case geo.ResultInRange:
		s.state = StateInRange
	case geo.ResultOutOfRange:
		s.state = StateOutOfRange
	default:
		s.state = StateError
	}
	return s.eval, nil
}

// Retry re-enters Checking and samples again. Retries are explicit and
// unbounded; the gate never auto-retries a failed sample.
func (s *Session) Retry(ctx context.Context) (geo.Evaluation, error) {
	s.state = StateChecking
	s.eval = geo.Evaluation{}
	s.err = nil
	return s.Check(ctx)
}

// CanStartVisit reports whether the gate unlocks check-in. Only a verified
// in-range evaluation passes.
func (s *Session) CanStartVisit() bool {
	return s.state == StateInRange
}

// CanCancel reports whether the gate unlocks on-site cancellation.
// Cancellation is deliberately unreachable from OutOfRange and Error: an
// officer must be at the home to record why a visit cannot happen.
func (s *Session) CanCancel() bool {
	return s.state == StateInRange
}
