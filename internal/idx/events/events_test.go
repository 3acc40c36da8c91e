package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"selfid/internal/idx"
	"selfid/pkg/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []idx.DocumentEvent
	block  chan struct{}
	err    error
}

func (s *recordingSink) Write(_ context.Context, event idx.DocumentEvent) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func testEvent(id string) idx.DocumentEvent {
	return idx.DocumentEvent{
		ID:         id,
		DID:        domain.DID("did:test:123"),
		Key:        domain.DocumentKeyBasicProfile,
		Content:    json.RawMessage(`{"name":"Bob"}`),
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(sink)
	defer pub.Close()

	require.NoError(t, pub.Publish(context.Background(), testEvent("01")))
	assert.Equal(t, 1, sink.len())
}

func TestPublisher_SyncModeReturnsSinkError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewPublisher(&recordingSink{err: boom})
	defer pub.Close()

	assert.ErrorIs(t, pub.Publish(context.Background(), testEvent("01")), boom)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(sink, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Publish(context.Background(), testEvent("01")))
	}
	pub.Close()

	assert.Equal(t, 10, sink.len())
}

func TestPublisher_AsyncBufferFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	pub := NewPublisher(sink, WithAsyncBuffer(1))

	// the worker takes the first event and blocks, the second fills the buffer
	require.NoError(t, pub.Publish(context.Background(), testEvent("01")))
	require.Eventually(t, func() bool {
		return pub.Publish(context.Background(), testEvent("02")) == nil
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, pub.Publish(context.Background(), testEvent("03")), ErrBufferFull)

	close(sink.block)
	pub.Close()
	assert.Equal(t, 2, sink.len())
}

func TestPublisher_PublishAfterClose(t *testing.T) {
	pub := NewPublisher(&recordingSink{}, WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	assert.ErrorIs(t, pub.Publish(context.Background(), testEvent("01")), ErrClosed)
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaSink(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewKafkaSink(producer, "selfid.documents")

	require.NoError(t, sink.Write(context.Background(), testEvent("01J0000000000000000000000")))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "selfid.documents", rec.Topic)
	assert.Equal(t, "did:test:123", string(rec.Key))
	assert.Equal(t, "event_id", rec.Headers[0].Key)

	var decoded idx.DocumentEvent
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, testEvent("01J0000000000000000000000"), decoded)
}

func TestKafkaSinkProduceError(t *testing.T) {
	boom := errors.New("not leader")
	sink := NewKafkaSink(&fakeProducer{err: boom}, "selfid.documents")

	assert.ErrorIs(t, sink.Write(context.Background(), testEvent("01")), boom)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Write(context.Background(), testEvent("01")))
	assert.Contains(t, buf.String(), `"event_id":"01"`)
	assert.Contains(t, buf.String(), `"did":"did:test:123"`)
}
