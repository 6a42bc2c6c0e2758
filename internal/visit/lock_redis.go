package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"kutumb/internal/platform/redis"
	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// RedisLock implements OfficerLock as a SET NX PX lease so the officer
// exclusivity check holds across replicas.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// releaseScript deletes the lease only if this holder still owns it; an
// expired lease taken over by another acquirer must not be released from
// here.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func officerLockKey(officer domain.OfficerID) string {
	return "visit:officer-lock:" + officer.String()
}

func (l *RedisLock) Acquire(ctx context.Context, officer domain.OfficerID, ttl time.Duration) (func(), error) {
	key := officerLockKey(officer)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire officer lock: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrConflict
	}

	release := func() {
		// Release is best-effort; the TTL bounds a leak from a crashed holder.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
