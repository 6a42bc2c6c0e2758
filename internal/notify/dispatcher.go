package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kutumb/pkg/platform/circuit"
)

const (
	sendTimeout = 5 * time.Second

	// When the breaker is open, one in probeEvery notifications still goes
	// out to detect recovery.
	probeEvery = 8
)

// Dispatcher sends notifications asynchronously. Each Dispatch returns
// immediately; delivery happens on its own goroutine behind a circuit breaker
// so a dead SMS gateway degrades to dropped notifications, not blocked
// lifecycle transitions.
type Dispatcher struct {
	sender  Sender
	breaker *circuit.Breaker
	logger  *slog.Logger
	skipped atomic.Uint64
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		breaker: circuit.New("notify",
			circuit.WithFailureThreshold(3),
			circuit.WithSuccessThreshold(1),
		),
		logger: logger,
	}
}

// Dispatch queues one notification for delivery and returns immediately.
func (d *Dispatcher) Dispatch(n Notification) {
	if d.breaker.IsOpen() && d.skipped.Add(1)%probeEvery != 0 {
		d.logger.Debug("notification dropped, sender circuit open",
			"kind", string(n.Kind),
			"visit_id", n.VisitID,
		)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Detached from the request context: the transition has already
		// committed by the time delivery runs.
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.sender.Send(ctx, n); err != nil {
			d.breaker.RecordFailure()
			d.logger.Warn("notification delivery failed",
				"error", err,
				"kind", string(n.Kind),
				"recipient", n.Recipient,
				"visit_id", n.VisitID,
			)
			return
		}
		d.breaker.RecordSuccess()
	}()
}

// Close waits for in-flight deliveries to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}
