package idx

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"selfid/internal/platform/metrics"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
)

const tracerName = "selfid/internal/idx"

// TracedStore wraps a store with a span and a latency observation per call.
type TracedStore struct {
	next    Store
	name    string
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

func NewTracedStore(next Store, name string, m *metrics.Metrics) *TracedStore {
	return &TracedStore{
		next:    next,
		name:    name,
		tracer:  otel.Tracer(tracerName),
		metrics: m,
	}
}

func (s *TracedStore) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*Document, error) {
	ctx, span := s.start(ctx, "idx.store.get", id, key)
	defer span.End()
	start := time.Now()

	doc, err := s.next.Get(ctx, id, key)
	s.metrics.ObserveIndexLatency(s.name, "get", time.Since(start))
	span.SetAttributes(attribute.Bool("idx.found", doc != nil))
	end(span, err)
	return doc, err
}

func (s *TracedStore) Put(ctx context.Context, doc Document) error {
	ctx, span := s.start(ctx, "idx.store.put", doc.DID, doc.Key)
	defer span.End()
	start := time.Now()

	err := s.next.Put(ctx, doc)
	s.metrics.ObserveIndexLatency(s.name, "put", time.Since(start))
	end(span, err)
	return err
}

func (s *TracedStore) start(ctx context.Context, op string, id domain.DID, key domain.DocumentKey) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("idx.store", s.name),
		attribute.String("idx.did", id.String()),
		attribute.String("idx.key", key.String()),
	))
}

// end marks the span failed for anything but a missing document.
func end(span trace.Span, err error) {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
