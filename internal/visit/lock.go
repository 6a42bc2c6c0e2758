package visit

import (
	"context"
	"sync"
	"time"

	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// OfficerLock serializes the check-then-set window around StartVisit for one
// officer. Two near-simultaneous check-ins by the same officer must not both
// pass the in-progress check.
type OfficerLock interface {
	// Acquire takes the officer's lock for at most ttl. A held lock returns
	// sentinel.ErrConflict. The returned release must be called once the
	// transition has committed or failed.
	Acquire(ctx context.Context, officer domain.OfficerID, ttl time.Duration) (release func(), err error)
}

// MemoryLock is the single-process OfficerLock.
type MemoryLock struct {
	mu   sync.Mutex
	held map[domain.OfficerID]struct{}
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[domain.OfficerID]struct{})}
}

func (l *MemoryLock) Acquire(_ context.Context, officer domain.OfficerID, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[officer]; taken {
		return nil, sentinel.ErrConflict
	}
	l.held[officer] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, officer)
		})
	}
	return release, nil
}
