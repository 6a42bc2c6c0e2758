//go:build integration

package visit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "kutumb/internal/platform/redis"
	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
	"kutumb/pkg/testutil/containers"
)

func TestRedisLock(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	lock := NewRedisLock(&platformredis.Client{Client: rc.Client})

	t.Run("holder excludes a second acquirer", func(t *testing.T) {
		officer := domain.NewOfficerID()

		release, err := lock.Acquire(ctx, officer, 30*time.Second)
		require.NoError(t, err)

		_, err = lock.Acquire(ctx, officer, 30*time.Second)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		release()

		release2, err := lock.Acquire(ctx, officer, 30*time.Second)
		require.NoError(t, err)
		release2()
	})

	t.Run("locks are per officer", func(t *testing.T) {
		a, err := lock.Acquire(ctx, domain.NewOfficerID(), 30*time.Second)
		require.NoError(t, err)
		defer a()

		b, err := lock.Acquire(ctx, domain.NewOfficerID(), 30*time.Second)
		require.NoError(t, err)
		b()
	})

	t.Run("lock expires after its ttl", func(t *testing.T) {
		officer := domain.NewOfficerID()

		_, err := lock.Acquire(ctx, officer, 100*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(200 * time.Millisecond)

		release, err := lock.Acquire(ctx, officer, 30*time.Second)
		require.NoError(t, err)
		release()
	})

	t.Run("release is idempotent", func(t *testing.T) {
		officer := domain.NewOfficerID()

		release, err := lock.Acquire(ctx, officer, 30*time.Second)
		require.NoError(t, err)
		release()
		release()
	})
}
