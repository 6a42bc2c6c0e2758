// Package kafka forwards audit events to a Kafka topic so external compliance
// tooling can consume the trail without touching the primary store.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"kutumb/pkg/platform/audit"
)

// Forwarder produces one JSON record per audit event, keyed by resource so a
// single visit's trail stays ordered within a partition.
type Forwarder struct {
	client *kgo.Client
	topic  string
}

// payload is the wire shape. Field names are part of the consumer contract.
type payload struct {
	Category  string            `json:"category"`
	Timestamp string            `json:"timestamp"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewForwarder connects to the brokers and ensures the topic exists.
func NewForwarder(ctx context.Context, brokers []string, topic string) (*Forwarder, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create audit topic: %w", err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("create audit topic %s: %w", resp.Topic, resp.Err)
		}
	}

	return &Forwarder{client: client, topic: topic}, nil
}

// Forward produces synchronously: the publisher's circuit breaker owns the
// policy for a slow or dead broker, so this call just reports the truth.
func (f *Forwarder) Forward(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(payload{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor,
		Action:    event.Action,
		Resource:  event.Resource,
		RequestID: event.RequestID,
		Details:   event.Details,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: f.topic,
		Key:   []byte(event.Resource),
		Value: value,
	}
	if err := f.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (f *Forwarder) Close() {
	f.client.Close()
}
