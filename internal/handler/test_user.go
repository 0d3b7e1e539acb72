package handler

import (
	"context"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// TestUserHandler fires test_user events, used by the scenario builder
// to exercise a scenario against a chosen user.
type TestUserHandler struct {
	dispatcher Dispatcher
}

func NewTestUserHandler(d Dispatcher) *TestUserHandler {
	return &TestUserHandler{dispatcher: d}
}

func (h *TestUserHandler) Type() domain.MessageType {
	return domain.MessageTypeTestUser
}

func (h *TestUserHandler) Handle(ctx context.Context, msg domain.Message) error {
	userID, ok := int64Field(msg.Payload, "user_id")
	if !ok {
		return &MissingFieldError{MessageType: string(msg.Type), Field: "user_id"}
	}
	return h.dispatcher.Dispatch(ctx, domain.EventTestUser, userID, nil, jobContext(msg))
}

// NewTestUserMessage builds the message the admin surface publishes to
// test-fire a scenario for one user.
func NewTestUserMessage(userID int64) domain.Message {
	return domain.NewMessage(domain.MessageTypeTestUser, map[string]any{
		"user_id": userID,
	})
}
