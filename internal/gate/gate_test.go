package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kutumb/internal/geo"
	dErrors "kutumb/pkg/domain-errors"
)

var (
	citizenHome = geo.Position{Latitude: 28.6139, Longitude: 77.2090}
	atDoorstep  = geo.Position{Latitude: 28.6140, Longitude: 77.2091}
	acrossTown  = geo.Position{Latitude: 28.7000, Longitude: 77.3000}
)

// stubSource returns a scripted sequence of positions and errors, one per
// call.
type stubSource struct {
	samples []sample
	calls   int
}

type sample struct {
	pos geo.Position
	err error
}

func (s *stubSource) CurrentPosition(context.Context) (geo.Position, error) {
	i := s.calls
	if i >= len(s.samples) {
		i = len(s.samples) - 1
	}
	s.calls++
	return s.samples[i].pos, s.samples[i].err
}

// blockingSource never produces a fix; it waits out the context.
type blockingSource struct{}

func (blockingSource) CurrentPosition(ctx context.Context) (geo.Position, error) {
	<-ctx.Done()
	return geo.Position{}, ctx.Err()
}

func TestCheckInRange(t *testing.T) {
	source := &stubSource{samples: []sample{{pos: atDoorstep}}}
	session := NewSession(source, &citizenHome)

	require.Equal(t, StateChecking, session.State())
	assert.False(t, session.CanStartVisit())
	assert.False(t, session.CanCancel())

	eval, err := session.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateInRange, session.State())
	assert.Equal(t, geo.ResultInRange, eval.Result)
	assert.True(t, session.CanStartVisit())
	assert.True(t, session.CanCancel())
}

func TestCheckOutOfRange(t *testing.T) {
	source := &stubSource{samples: []sample{{pos: acrossTown}}}
	session := NewSession(source, &citizenHome)

	eval, err := session.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateOutOfRange, session.State())
	assert.Greater(t, eval.DistanceMeters, geo.DefaultThresholdMeters)
	assert.False(t, session.CanStartVisit())
	assert.False(t, session.CanCancel(), "cancellation must not be reachable off-site")
}

func TestCheckLocationFailure(t *testing.T) {
	source := &stubSource{samples: []sample{{err: errors.New("gps disabled")}}}
	session := NewSession(source, &citizenHome)

	eval, err := session.Check(context.Background())
	require.Error(t, err)

	assert.True(t, dErrors.HasCode(err, dErrors.CodeLocation))
	assert.Equal(t, StateError, session.State())
	assert.Equal(t, geo.ResultError, eval.Result)
	assert.False(t, session.CanStartVisit())
	assert.False(t, session.CanCancel())
	assert.Error(t, session.Err())
}

func TestCheckSampleTimeout(t *testing.T) {
	session := NewSession(blockingSource{}, &citizenHome, WithSampleTimeout(10*time.Millisecond))

	_, err := session.Check(context.Background())
	require.Error(t, err)

	assert.True(t, dErrors.HasCode(err, dErrors.CodeLocation))
	assert.Equal(t, StateError, session.State())
}

func TestCheckCallerCancellation(t *testing.T) {
	session := NewSession(blockingSource{}, &citizenHome)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := session.Check(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// An aborted check leaves the session untouched.
	assert.Equal(t, StateChecking, session.State())
	assert.NoError(t, session.Err())
}

func TestRetryAfterFailure(t *testing.T) {
	source := &stubSource{samples: []sample{
		{err: errors.New("gps disabled")},
		{pos: acrossTown},
		{pos: atDoorstep},
	}}
	session := NewSession(source, &citizenHome)

	_, err := session.Check(context.Background())
	require.Error(t, err)
	require.Equal(t, StateError, session.State())

	_, err = session.Retry(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateOutOfRange, session.State())

	eval, err := session.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateInRange, session.State())
	assert.True(t, eval.InRange())
	assert.True(t, session.CanStartVisit())
	assert.Equal(t, 3, source.calls)
}

func TestMissingCitizenCoordinatesPassUnverified(t *testing.T) {
	source := &stubSource{samples: []sample{{pos: acrossTown}}}
	session := NewSession(source, nil)

	eval, err := session.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateInRange, session.State())
	assert.True(t, eval.Unverified)
	assert.True(t, session.CanStartVisit())
}

func TestCustomThreshold(t *testing.T) {
	source := &stubSource{samples: []sample{{pos: atDoorstep}}}
	session := NewSession(source, &citizenHome, WithThreshold(1))

	_, err := session.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateOutOfRange, session.State())
}
