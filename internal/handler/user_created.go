package handler

import (
	"context"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// UserCreatedHandler dispatches user_created events from the users module.
type UserCreatedHandler struct {
	dispatcher Dispatcher
}

func NewUserCreatedHandler(d Dispatcher) *UserCreatedHandler {
	return &UserCreatedHandler{dispatcher: d}
}

func (h *UserCreatedHandler) Type() domain.MessageType {
	return domain.MessageTypeUserCreated
}

func (h *UserCreatedHandler) Handle(ctx context.Context, msg domain.Message) error {
	userID, ok := int64Field(msg.Payload, "user_id")
	if !ok {
		return &MissingFieldError{MessageType: string(msg.Type), Field: "user_id"}
	}
	return h.dispatcher.Dispatch(ctx, domain.EventUserCreated, userID, nil, jobContext(msg))
}
