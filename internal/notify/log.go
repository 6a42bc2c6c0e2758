package notify

import (
	"context"
	"log/slog"
)

// LogSender writes notifications to the structured log. Used in development
// and as the fallback when no broker is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"kind", string(n.Kind),
		"recipient", n.Recipient,
		"visit_id", n.VisitID,
		"message", n.Message,
	)
	return nil
}
