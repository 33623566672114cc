// Package publisher emits audit events to a primary store and optional
// fan-out sinks (e.g. a Kafka topic). It supports synchronous emission for
// tests and small deployments, and a buffered asynchronous mode for hot paths.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "custodia/pkg/platform/audit"
)

type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger

	inbox chan audit.Event
	wg    sync.WaitGroup

	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with the given channel
// capacity. When the buffer is full events are dropped rather than blocking
// the engine's critical section.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithFanout registers an additional sink that receives every event after the
// primary store. Sink failures are logged, never surfaced to the emitter.
func WithFanout(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sink)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. In async mode the event is queued and Emit
// never blocks; a full buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.inbox == nil {
		return p.deliver(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		return nil
	}
}

// List returns the audit trail for a transfer from the primary store.
func (p *Publisher) List(ctx context.Context, transferID int64) ([]audit.Event, error) {
	return p.store.ListByTransfer(ctx, transferID)
}

// Close drains any buffered events and stops the background worker. Safe to
// call more than once.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.deliver(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"error", err,
			)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	err := p.store.Append(ctx, event)
	for _, sink := range p.sinks {
		if sinkErr := sink.Append(ctx, event); sinkErr != nil {
			p.logger.Warn("audit sink append failed",
				"action", event.Action,
				"error", sinkErr,
			)
		}
	}
	return err
}
