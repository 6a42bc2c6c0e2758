// Package publisher captures structured audit events. The publisher is
// append-only and uses the storage layer for persistence so tests can swap
// sinks easily. An optional forwarder fans events out to an external sink
// (Kafka); forwarding is best-effort behind a circuit breaker and never fails
// an Emit.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kutumb/pkg/platform/circuit"

	audit "kutumb/pkg/platform/audit"
	"kutumb/pkg/platform/audit/worker"
)

// Forwarder pushes an audit event to an external sink.
type Forwarder interface {
	Forward(ctx context.Context, event audit.Event) error
}

// probeEvery controls how often an open forwarder circuit is probed with a
// live event.
const probeEvery = 32

type Publisher struct {
	store     audit.Store
	forwarder Forwarder
	breaker   *circuit.Breaker
	logger    *slog.Logger

	inbox   chan audit.Event
	done    chan struct{}
	skipped int
	mu      sync.Mutex
	once    sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking through a buffered channel drained
// by a background goroutine. When the buffer is full the event is dropped
// rather than blocking a lifecycle transition.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithForwarder attaches an external sink.
func WithForwarder(f Forwarder) Option {
	return func(p *Publisher) {
		p.forwarder = f
	}
}

// WithLogger attaches a logger for drop and forwarding diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		breaker: circuit.New("audit-forwarder", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records an audit event. In sync mode the event is persisted before
// returning; in async mode it is queued and persisted by the background drain.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.Action(event.Action).Category()
	}

	if p.inbox == nil {
		return p.apply(ctx, event)
	}

	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, event dropped",
				"action", event.Action,
				"resource", event.Resource,
			)
		}
	}
	return nil
}

// List returns the trail for one resource (e.g. "Visit:<id>").
func (p *Publisher) List(ctx context.Context, resource string) ([]audit.Event, error) {
	return p.store.ListByResource(ctx, resource)
}

// Close stops the background drain after flushing queued events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	// Run until the inbox closes; append failures are logged, never fatal.
	w := worker.New(func(ctx context.Context, event audit.Event) error {
		if err := p.apply(ctx, event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"resource", event.Resource,
				"error", err,
			)
		}
		return nil
	}, p.inbox)
	_ = w.Run(context.Background())
}

func (p *Publisher) apply(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	p.forward(ctx, event)
	return nil
}

// forward is best-effort: a dead sink must never fail or slow an Emit, so
// failures trip the breaker and an open breaker only lets a probe through
// every probeEvery events.
func (p *Publisher) forward(ctx context.Context, event audit.Event) {
	if p.forwarder == nil {
		return
	}

	if p.breaker.IsOpen() {
		p.mu.Lock()
		p.skipped++
		probe := p.skipped%probeEvery == 0
		p.mu.Unlock()
		if !probe {
			return
		}
	}

	if err := p.forwarder.Forward(ctx, event); err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened && p.logger != nil {
			p.logger.Warn("audit forwarder circuit opened", "error", err)
		}
		return
	}
	_, change := p.breaker.RecordSuccess()
	if change.Closed && p.logger != nil {
		p.logger.Info("audit forwarder circuit closed")
	}
}
