package idx

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"selfid/internal/platform/metrics"
	"selfid/pkg/domain"
	"selfid/pkg/requestcontext"
)

// EventingStore publishes a DocumentEvent after every successful write.
// Publish failures are logged and counted; they never fail the write.
type EventingStore struct {
	next      Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewEventingStore(next Store, publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *EventingStore {
	return &EventingStore{next: next, publisher: publisher, metrics: m, logger: logger}
}

func (s *EventingStore) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*Document, error) {
	return s.next.Get(ctx, id, key)
}

func (s *EventingStore) Put(ctx context.Context, doc Document) error {
	if err := s.next.Put(ctx, doc); err != nil {
		return err
	}

	event := DocumentEvent{
		ID:         ulid.Make().String(),
		DID:        doc.DID,
		Key:        doc.Key,
		Content:    doc.Content,
		OccurredAt: doc.UpdatedAt,
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.IncrementEventsPublished("failed")
		s.logger.WarnContext(ctx, "failed to publish document event",
			"event_id", event.ID,
			"did", doc.DID.String(),
			"error", err,
			"request_id", event.RequestID,
		)
		return nil
	}
	s.metrics.IncrementEventsPublished("published")
	return nil
}
