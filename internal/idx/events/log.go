package events

import (
	"context"
	"log/slog"

	"selfid/internal/idx"
)

// LogSink writes events to the structured log. Used when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, event idx.DocumentEvent) error {
	s.logger.InfoContext(ctx, "document updated",
		"event_id", event.ID,
		"did", event.DID.String(),
		"key", event.Key.String(),
		"occurred_at", event.OccurredAt,
		"request_id", event.RequestID,
	)
	return nil
}
