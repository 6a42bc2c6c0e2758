package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "kutumb/pkg/platform/audit"
	"kutumb/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Actor:    "officer-1",
		Action:   string(audit.ActionVisitStarted),
		Resource: "Visit:abc",
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "Visit:abc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionVisitStarted), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	err := pub.Emit(context.Background(), audit.Event{
		Actor:    "supervisor-1",
		Action:   string(audit.ActionVisitApproved),
		Resource: "Visit:xyz",
	})
	require.NoError(t, err)

	// Close flushes the buffer before returning.
	pub.Close()

	events, err := store.ListByResource(context.Background(), "Visit:xyz")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionVisitApproved), events[0].Action)
}

type flakyForwarder struct {
	mu       sync.Mutex
	fail     bool
	received []audit.Event
}

func (f *flakyForwarder) Forward(_ context.Context, event audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unreachable")
	}
	f.received = append(f.received, event)
	return nil
}

func (f *flakyForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestPublisher_ForwarderFailureNeverFailsEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	fwd := &flakyForwarder{fail: true}
	pub := NewPublisher(store, WithForwarder(fwd))
	defer pub.Close()

	for i := 0; i < 5; i++ {
		err := pub.Emit(context.Background(), audit.Event{
			Action:    string(audit.ActionVisitScheduled),
			Resource:  "Visit:abc",
			Timestamp: time.Now(),
		})
		require.NoError(t, err)
	}

	// Every event persisted despite the dead sink.
	events, err := store.ListByResource(context.Background(), "Visit:abc")
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Equal(t, 0, fwd.count())
}
