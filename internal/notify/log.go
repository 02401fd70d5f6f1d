package notify

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the structured log. It is the default
// backend for local runs.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, batch []Notification) error {
	for _, n := range batch {
		s.logger.InfoContext(ctx, "notification",
			"kind", n.Kind,
			"user_id", n.UserID.String(),
			"event_id", n.EventID.String(),
		)
	}
	return nil
}
