package idx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"selfid/internal/platform/metrics"
	"selfid/pkg/domain"
	"selfid/pkg/platform/circuit"
	"selfid/pkg/platform/sentinel"
)

// BreakerStore guards a primary store with a circuit breaker. Successful
// reads are cached in the fallback store; while the circuit is open, failed
// reads are served from that cache. Writes always go to the primary.
type BreakerStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewBreakerStore(primary, fallback Store, breaker *circuit.Breaker, m *metrics.Metrics, logger *slog.Logger) *BreakerStore {
	return &BreakerStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		metrics:  m,
		logger:   logger,
	}
}

func (s *BreakerStore) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*Document, error) {
	doc, err := s.primary.Get(ctx, id, key)
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		s.success(ctx)
		if doc != nil {
			s.remember(ctx, *doc)
		}
		return doc, err
	}
	if callerGone(err) {
		return nil, err
	}

	if !s.failure(ctx, err) {
		return nil, err
	}
	cached, cacheErr := s.fallback.Get(ctx, id, key)
	if cacheErr != nil {
		return nil, fmt.Errorf("%w: %s circuit open", sentinel.ErrUnavailable, s.breaker.Name())
	}
	s.logger.WarnContext(ctx, "serving cached document while index is degraded",
		"breaker", s.breaker.Name(),
		"did", id.String(),
		"key", key.String(),
	)
	return cached, nil
}

func (s *BreakerStore) Put(ctx context.Context, doc Document) error {
	if err := s.primary.Put(ctx, doc); err != nil {
		if !callerGone(err) {
			s.failure(ctx, err)
		}
		return err
	}
	s.success(ctx)
	s.remember(ctx, doc)
	return nil
}

func (s *BreakerStore) remember(ctx context.Context, doc Document) {
	if err := s.fallback.Put(ctx, doc); err != nil {
		s.logger.WarnContext(ctx, "failed to cache document", "error", err)
	}
}

func (s *BreakerStore) success(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.IncrementBreakerTransition(s.breaker.Name(), circuit.StateClosed.String())
		s.logger.InfoContext(ctx, "index circuit closed", "breaker", s.breaker.Name())
	}
}

// failure records err and reports whether the fallback should be used.
func (s *BreakerStore) failure(ctx context.Context, err error) bool {
	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.metrics.IncrementBreakerTransition(s.breaker.Name(), circuit.StateOpen.String())
		s.logger.WarnContext(ctx, "index circuit opened",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	return useFallback
}

// callerGone reports errors caused by the caller's own context rather than
// by the primary store.
func callerGone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
