package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// SubscriptionResolver looks up subscriptions and their payments in the
// external subscriptions/payments modules. Implementations return
// sql.ErrNoRows when the entity does not exist.
type SubscriptionResolver interface {
	SubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error)
	SubscriptionPayment(ctx context.Context, subscriptionID int64) (domain.Payment, error)
}

// NewSubscriptionHandler dispatches new_subscription events. The
// subscription must resolve; the associated payment is optional.
type NewSubscriptionHandler struct {
	dispatcher Dispatcher
	resolver   SubscriptionResolver
}

func NewNewSubscriptionHandler(d Dispatcher, resolver SubscriptionResolver) *NewSubscriptionHandler {
	return &NewSubscriptionHandler{dispatcher: d, resolver: resolver}
}

func (h *NewSubscriptionHandler) Type() domain.MessageType {
	return domain.MessageTypeNewSubscription
}

func (h *NewSubscriptionHandler) Handle(ctx context.Context, msg domain.Message) error {
	subscriptionID, ok := int64Field(msg.Payload, "subscription_id")
	if !ok {
		return &MissingFieldError{MessageType: string(msg.Type), Field: "subscription_id"}
	}

	subscription, err := h.resolver.SubscriptionByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "subscription", ID: subscriptionID}
		}
		return fmt.Errorf("resolve subscription %d: %w", subscriptionID, err)
	}

	params := map[string]any{"subscription_id": subscriptionID}

	payment, err := h.resolver.SubscriptionPayment(ctx, subscriptionID)
	switch {
	case err == nil:
		params["payment_id"] = payment.ID
	case errors.Is(err, sql.ErrNoRows):
		// Subscriptions without a payment (e.g. gifts) are dispatched
		// without the correlation id.
	default:
		return fmt.Errorf("resolve payment for subscription %d: %w", subscriptionID, err)
	}

	return h.dispatcher.Dispatch(ctx, domain.EventNewSubscription, subscription.UserID, params, jobContext(msg))
}
