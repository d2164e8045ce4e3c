package audit

import (
	"context"
	"sync"
	"time"
)

// Publisher captures structured audit events. In the default synchronous
// mode Emit writes straight through to the store. With WithAsyncBuffer a
// background worker drains a channel instead, and Emit never blocks the
// request path; events are dropped when the buffer is full.
type Publisher struct {
	store Store

	buffer  chan Event
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with the given channel
// capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan Event, size)
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		go p.drain()
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
	default:
		// Buffer full. Audit must never stall the request path.
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close stops the async worker after draining buffered events. Safe to call
// in sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
		<-p.done
	}
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buffer {
		_ = p.store.Append(context.Background(), event)
	}
}
