package idx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfid/internal/idx"
	"selfid/internal/idx/store/memory"
	"selfid/internal/platform/metrics"
	"selfid/pkg/domain"
	"selfid/pkg/platform/circuit"
	"selfid/pkg/platform/sentinel"
	"selfid/pkg/requestcontext"
)

// flakyStore fails every call while down is set.
type flakyStore struct {
	mu    sync.Mutex
	down  bool
	inner *memory.InMemoryStore
}

func (s *flakyStore) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *flakyStore) isDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

func (s *flakyStore) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*idx.Document, error) {
	if s.isDown() {
		return nil, sentinel.ErrUnavailable
	}
	return s.inner.Get(ctx, id, key)
}

func (s *flakyStore) Put(ctx context.Context, doc idx.Document) error {
	if s.isDown() {
		return sentinel.ErrUnavailable
	}
	return s.inner.Put(ctx, doc)
}

var profileDoc = idx.Document{
	DID:     "did:test:123",
	Key:     domain.DocumentKeyBasicProfile,
	Content: json.RawMessage(`{"name":"Bob"}`),
}

func TestBreakerStoreServesCacheWhileOpen(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{inner: memory.New()}
	cache := memory.New()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	breaker := circuit.New("index", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	store := idx.NewBreakerStore(primary, cache, breaker, m, discard)

	require.NoError(t, store.Put(ctx, profileDoc))
	assert.Equal(t, 1, cache.Len())

	primary.setDown(true)
	_, err := store.Get(ctx, profileDoc.DID, profileDoc.Key)
	require.ErrorIs(t, err, sentinel.ErrUnavailable, "first failure does not trip the breaker")

	doc, err := store.Get(ctx, profileDoc.DID, profileDoc.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Bob"}`, string(doc.Content))
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("index", "open")))

	_, err = store.Get(ctx, "did:test:uncached", profileDoc.Key)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	assert.ErrorIs(t, store.Put(ctx, profileDoc), sentinel.ErrUnavailable)

	primary.setDown(false)
	_, err = store.Get(ctx, profileDoc.DID, profileDoc.Key)
	require.NoError(t, err)
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("index", "closed")))
}

func TestBreakerStoreNotFoundIsNotAFailure(t *testing.T) {
	breaker := circuit.New("index", circuit.WithFailureThreshold(1))
	store := idx.NewBreakerStore(memory.New(), memory.New(), breaker, nil, discard)

	_, err := store.Get(context.Background(), "did:test:missing", domain.DocumentKeyBasicProfile)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.False(t, breaker.IsOpen())
}

// abandonedStore fails every call with err.
type abandonedStore struct{ err error }

func (s abandonedStore) Get(context.Context, domain.DID, domain.DocumentKey) (*idx.Document, error) {
	return nil, s.err
}

func (s abandonedStore) Put(context.Context, idx.Document) error {
	return s.err
}

func TestBreakerStoreIgnoresCallerCancellation(t *testing.T) {
	for _, err := range []error{
		context.Canceled,
		context.DeadlineExceeded,
		fmt.Errorf("%w: %w", sentinel.ErrUnavailable, context.Canceled),
	} {
		t.Run(err.Error(), func(t *testing.T) {
			breaker := circuit.New("index", circuit.WithFailureThreshold(1))
			store := idx.NewBreakerStore(abandonedStore{err: err}, memory.New(), breaker, nil, discard)

			for range 3 {
				_, getErr := store.Get(context.Background(), profileDoc.DID, profileDoc.Key)
				assert.ErrorIs(t, getErr, err)
				assert.ErrorIs(t, store.Put(context.Background(), profileDoc), err)
			}
			assert.False(t, breaker.IsOpen())
		})
	}
}

func TestTracedStoreObservesLatency(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	store := idx.NewTracedStore(memory.New(), "memory", m)

	require.NoError(t, store.Put(context.Background(), profileDoc))
	_, err := store.Get(context.Background(), profileDoc.DID, profileDoc.Key)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "did:test:missing", profileDoc.Key)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	assert.Equal(t, 2, testutil.CollectAndCount(m.IndexLatency))
}

type capturePublisher struct {
	events []idx.DocumentEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e idx.DocumentEvent) error {
	p.events = append(p.events, e)
	return p.err
}

func TestEventingStorePublishesAfterWrite(t *testing.T) {
	pub := &capturePublisher{}
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	store := idx.NewEventingStore(memory.New(), pub, m, discard)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")

	require.NoError(t, store.Put(ctx, profileDoc))
	require.NoError(t, store.Put(ctx, profileDoc))

	require.Len(t, pub.events, 2)
	assert.Equal(t, profileDoc.DID, pub.events[0].DID)
	assert.Equal(t, "req-1", pub.events[0].RequestID)
	assert.Len(t, pub.events[0].ID, 26)
	assert.NotEqual(t, pub.events[0].ID, pub.events[1].ID)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("published")))
}

func TestEventingStorePublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	inner := memory.New()
	store := idx.NewEventingStore(inner, pub, nil, discard)

	require.NoError(t, store.Put(context.Background(), profileDoc))
	assert.Equal(t, 1, inner.Len())
}

func TestEventingStoreSkipsEventOnFailedWrite(t *testing.T) {
	pub := &capturePublisher{}
	store := idx.NewEventingStore(failingStore{err: sentinel.ErrUnavailable}, pub, nil, discard)

	assert.ErrorIs(t, store.Put(context.Background(), profileDoc), sentinel.ErrUnavailable)
	assert.Empty(t, pub.events)
}
