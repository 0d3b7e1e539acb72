package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageType identifies an inbound message from the delivery transport.
type MessageType string

const (
	MessageTypeTestUser        MessageType = "scenarios-test-user"
	MessageTypeUserCreated     MessageType = "user-created"
	MessageTypeNewSubscription MessageType = "new-subscription"
)

// KnownMessageTypes lists every message type an adapter exists for.
func KnownMessageTypes() []MessageType {
	return []MessageType{
		MessageTypeTestUser,
		MessageTypeUserCreated,
		MessageTypeNewSubscription,
	}
}

// Canonical event names produced by the adapters and matched against
// trigger bindings.
const (
	EventTestUser        = "test_user"
	EventUserCreated     = "user_created"
	EventNewSubscription = "new_subscription"
)

// ContextKeyMessageType is the job-context key carrying the inbound
// message type a job originated from.
const ContextKeyMessageType = "message_type"

// Message is one inbound event message. The transport delivers it
// at least once; the engine does not deduplicate.
type Message struct {
	ID        uuid.UUID      `json:"id"`
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewMessage builds a Message with a fresh id and creation time.
func NewMessage(t MessageType, payload map[string]any) Message {
	return Message{
		ID:        uuid.New(),
		Type:      t,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
