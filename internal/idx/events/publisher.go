// Package events delivers document update events to a sink, either inline or
// through a bounded buffer drained by a background worker.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"selfid/internal/idx"
)

// ErrBufferFull is returned by an async publisher that cannot accept more events.
var ErrBufferFull = errors.New("event buffer full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("publisher closed")

// Sink writes one event to its destination.
type Sink interface {
	Write(ctx context.Context, event idx.DocumentEvent) error
}

// Publisher implements idx.Publisher over a Sink.
type Publisher struct {
	sink         Sink
	logger       *slog.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	buffer chan idx.DocumentEvent
	wg     sync.WaitGroup
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Publish enqueue events for a background worker.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan idx.DocumentEvent, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:         sink,
		logger:       slog.Default(),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Publish delivers event, or enqueues it in async mode.
func (p *Publisher) Publish(ctx context.Context, event idx.DocumentEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.buffer == nil {
		return p.sink.Write(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events and waits for buffered ones to be written.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		if err := p.sink.Write(ctx, event); err != nil {
			p.logger.Warn("failed to deliver document event",
				"event_id", event.ID,
				"did", event.DID.String(),
				"error", err,
			)
		}
		cancel()
	}
}
