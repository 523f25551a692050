// Package publisher fans vault audit events out to the append-only store and
// any configured sinks, synchronously or through a buffered worker.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/audit/worker"

	"github.com/ethereum/go-ethereum/common"
)

type Publisher struct {
	store   audit.Store
	sinks   []audit.Sink
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	bufferSize int
	mu         sync.RWMutex
	closed     bool
	inbox      chan audit.Event
	done       chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer persists events on a background worker. Emit never blocks;
// events are dropped (and logged) when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSink forwards every persisted event to sink. Sink failures are logged.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(p.persist, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event. In sync mode the store error is returned; in async
// mode Emit only fails after Close.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.inbox == nil {
		return p.persist(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("audit publisher closed")
	}
	select {
	case p.inbox <- event:
	default:
		p.metrics.incDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"kind", event.Kind,
			"vault", event.Vault.Hex(),
		)
	}
	return nil
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, &event); err != nil {
		p.metrics.incPersistFailures()
		return fmt.Errorf("append audit event: %w", err)
	}
	p.metrics.incPersisted()
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.metrics.incSinkFailures()
			p.logger.WarnContext(ctx, "audit sink publish failed",
				"kind", event.Kind,
				"vault", event.Vault.Hex(),
				"sequence", event.Sequence,
				"error", err,
			)
		}
	}
	return nil
}

// List returns a vault's audit trail in sequence order.
func (p *Publisher) List(ctx context.Context, vault common.Address) ([]audit.Event, error) {
	return p.store.ListByVault(ctx, vault)
}

// Close stops accepting events and drains the buffer.
func (p *Publisher) Close() error {
	if p.inbox == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
	return nil
}
