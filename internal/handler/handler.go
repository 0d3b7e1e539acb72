// Package handler contains the inbound message adapters.
//
// One handler exists per message type. Each validates the payload's
// required correlation fields, resolves any referenced entities, and
// forwards a canonical event to the dispatcher. Validation failures are
// typed errors so the transport can apply its own redelivery policy.
package handler

import (
	"context"
	"encoding/json"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// Handler processes one inbound message of a fixed type.
type Handler interface {
	Type() domain.MessageType
	Handle(ctx context.Context, msg domain.Message) error
}

// Dispatcher is the engine entry point handlers forward events to.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, userID int64, params, jobContext map[string]any) error
}

// jobContext builds the provenance context stored on created jobs.
func jobContext(msg domain.Message) map[string]any {
	return map[string]any{
		domain.ContextKeyMessageType: string(msg.Type),
	}
}

// int64Field extracts an integer payload field. JSON decoding yields
// float64 for numbers, so both native ints and float64 are accepted.
func int64Field(payload map[string]any, field string) (int64, bool) {
	v, ok := payload[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
