package channel

import (
	"context"
	"errors"
	"time"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// ErrBufferFull is returned by Emit when the bus buffer stays full for
// the whole emit timeout.
var ErrBufferFull = errors.New("channel: event bus buffer full")

// DefaultEmitTimeout bounds how long Emit blocks on a full buffer before
// giving up.
const DefaultEmitTimeout = 5 * time.Second

// MetricsSink receives buffer health updates from the bus.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

// Option configures a MessageBus.
type Option func(*MessageBus)

// WithEmitTimeout overrides DefaultEmitTimeout.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *MessageBus) {
		b.emitTimeout = d
	}
}

// WithMetrics attaches a metrics sink. The buffer capacity is reported
// immediately, size and saturation after every successful emit.
func WithMetrics(m MetricsSink) Option {
	return func(b *MessageBus) {
		b.metrics = m
	}
}

// MessageBus is the in-process transport. Producers Emit messages, the
// consumer reads them from Channel. Used when TRANSPORT_MODE=channel,
// typically in tests and single-process deployments.
type MessageBus struct {
	ch          chan domain.Message
	emitTimeout time.Duration
	metrics     MetricsSink
}

func NewMessageBus(buffer int, opts ...Option) *MessageBus {
	b := &MessageBus{
		ch:          make(chan domain.Message, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(cap(b.ch))
	}
	return b
}

// Emit enqueues msg. It blocks until there is buffer space, the context
// is cancelled, or the emit timeout elapses.
func (b *MessageBus) Emit(ctx context.Context, msg domain.Message) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- msg:
		b.reportBuffer()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

func (b *MessageBus) Channel() <-chan domain.Message {
	return b.ch
}

func (b *MessageBus) reportBuffer() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	capacity := cap(b.ch)
	if capacity > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(capacity))
	}
}
