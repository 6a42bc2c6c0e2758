//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"kutumb/pkg/platform/audit"
	"kutumb/pkg/testutil/containers"
)

func TestForwarder_ProducesEvent(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "kutumb.audit.test"

	fwd, err := NewForwarder(ctx, []string{rp.Broker}, topic)
	require.NoError(t, err)
	defer fwd.Close()

	event := audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC(),
		Actor:     "officer-1",
		Action:    string(audit.ActionVisitStarted),
		Resource:  "visit-1",
		RequestID: "req-1",
		Details:   map[string]string{"distance_meters": "12"},
	}
	require.NoError(t, fwd.Forward(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "visit-1", string(records[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "compliance", got["category"])
	require.Equal(t, "visit_checkin", got["action"])
	require.Equal(t, "officer-1", got["actor"])
	require.Equal(t, "visit-1", got["resource"])
	require.Equal(t, "req-1", got["request_id"])
}

func TestForwarder_TopicAlreadyExists(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "kutumb.audit.existing"

	first, err := NewForwarder(ctx, []string{rp.Broker}, topic)
	require.NoError(t, err)
	first.Close()

	second, err := NewForwarder(ctx, []string{rp.Broker}, topic)
	require.NoError(t, err)
	second.Close()
}
