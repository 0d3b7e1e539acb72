package consumer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
	"github.com/mikoczy/crm-scenarios-module/internal/handler"
)

// DefaultDrainTimeout is the default maximum time to wait for buffered
// messages during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// CapabilityRegistry records the message types this consumer serves.
type CapabilityRegistry interface {
	Register(name string)
}

// MetricsSink defines the interface for recording consumer metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	MessageReceived(messageType string)
	MessageFailed(messageType string)
	MessagesInFlightIncr()
	MessagesInFlightDecr()
}

// Consumer routes incoming messages to their registered handler by
// message type.
type Consumer struct {
	handlers     map[domain.MessageType]handler.Handler
	drainTimeout time.Duration
	metrics      MetricsSink // optional, nil = disabled
}

func New(handlers ...handler.Handler) *Consumer {
	c := &Consumer{
		handlers:     make(map[domain.MessageType]handler.Handler, len(handlers)),
		drainTimeout: DefaultDrainTimeout,
	}
	for _, h := range handlers {
		c.handlers[h.Type()] = h
	}
	return c
}

// WithMetrics attaches a metrics sink to the consumer.
func (c *Consumer) WithMetrics(sink MetricsSink) *Consumer {
	c.metrics = sink
	return c
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (c *Consumer) WithDrainTimeout(d time.Duration) *Consumer {
	if d > 0 {
		c.drainTimeout = d
	}
	return c
}

// RegisterCapabilities announces the consumer's message types to the
// registry.
func (c *Consumer) RegisterCapabilities(registry CapabilityRegistry) {
	for messageType := range c.handlers {
		registry.Register(string(messageType))
	}
}

// Process routes one message to its handler.
func (c *Consumer) Process(ctx context.Context, msg domain.Message) error {
	if c.metrics != nil {
		c.metrics.MessageReceived(string(msg.Type))
		c.metrics.MessagesInFlightIncr()
		defer c.metrics.MessagesInFlightDecr()
	}

	h, ok := c.handlers[msg.Type]
	if !ok {
		if c.metrics != nil {
			c.metrics.MessageFailed(string(msg.Type))
		}
		return fmt.Errorf("no handler registered for message type %q", msg.Type)
	}

	if err := h.Handle(ctx, msg); err != nil {
		if c.metrics != nil {
			c.metrics.MessageFailed(string(msg.Type))
		}
		return fmt.Errorf("handle %s: %w", msg.Type, err)
	}
	return nil
}

// Run processes messages from the channel until context is cancelled.
// After cancellation, it drains remaining buffered messages with a timeout.
func (c *Consumer) Run(ctx context.Context, ch <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			c.drain(ch)
			return
		case msg := <-ch:
			if err := c.Process(ctx, msg); err != nil {
				log.Printf("consumer: error: %v", err)
			}
		}
	}
}

// drain processes remaining messages in the channel buffer after shutdown signal.
// Uses a background context since the main context is already cancelled.
func (c *Consumer) drain(ch <-chan domain.Message) {
	drainCtx, cancel := context.WithTimeout(context.Background(), c.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("consumer: drain timeout, processed %d messages", count)
			}
			return
		case msg, ok := <-ch:
			if !ok {
				log.Printf("consumer: drain complete, processed %d messages", count)
				return
			}
			if err := c.Process(drainCtx, msg); err != nil {
				log.Printf("consumer: drain error: %v", err)
			}
			count++
		default:
			// No more buffered messages
			if count > 0 {
				log.Printf("consumer: drain complete, processed %d messages", count)
			}
			return
		}
	}
}
