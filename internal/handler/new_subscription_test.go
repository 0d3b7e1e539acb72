package handler

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// mockResolver serves canned subscriptions and payments.
type mockResolver struct {
	mu            sync.Mutex
	subscriptions map[int64]domain.Subscription
	payments      map[int64]domain.Payment // keyed by subscription id
	err           error
}

func (r *mockResolver) SubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.Subscription{}, r.err
	}
	sub, ok := r.subscriptions[id]
	if !ok {
		return domain.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (r *mockResolver) SubscriptionPayment(ctx context.Context, subscriptionID int64) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[subscriptionID]
	if !ok {
		return domain.Payment{}, sql.ErrNoRows
	}
	return payment, nil
}

func newSubscriptionMessage(payload map[string]any) domain.Message {
	return domain.NewMessage(domain.MessageTypeNewSubscription, payload)
}

func TestNewSubscriptionHandler_WithPayment(t *testing.T) {
	disp := &mockDispatcher{}
	resolver := &mockResolver{
		subscriptions: map[int64]domain.Subscription{7: {ID: 7, UserID: 42}},
		payments:      map[int64]domain.Payment{7: {ID: 100, SubscriptionID: 7}},
	}
	h := NewNewSubscriptionHandler(disp, resolver)

	msg := newSubscriptionMessage(map[string]any{"subscription_id": float64(7)})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	calls := disp.dispatched()
	if len(calls) != 1 {
		t.Fatalf("dispatched %d times, want 1", len(calls))
	}
	if calls[0].Event != domain.EventNewSubscription {
		t.Errorf("event = %q, want %q", calls[0].Event, domain.EventNewSubscription)
	}
	if calls[0].UserID != 42 {
		t.Errorf("userID = %d, want the subscription's user 42", calls[0].UserID)
	}
	if got := calls[0].Params["subscription_id"]; got != int64(7) {
		t.Errorf("params[subscription_id] = %v, want 7", got)
	}
	if got := calls[0].Params["payment_id"]; got != int64(100) {
		t.Errorf("params[payment_id] = %v, want 100", got)
	}
}

func TestNewSubscriptionHandler_WithoutPayment(t *testing.T) {
	disp := &mockDispatcher{}
	resolver := &mockResolver{
		subscriptions: map[int64]domain.Subscription{7: {ID: 7, UserID: 42}},
	}
	h := NewNewSubscriptionHandler(disp, resolver)

	msg := newSubscriptionMessage(map[string]any{"subscription_id": float64(7)})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	calls := disp.dispatched()
	if len(calls) != 1 {
		t.Fatalf("dispatched %d times, want 1", len(calls))
	}
	if _, ok := calls[0].Params["payment_id"]; ok {
		t.Error("payment_id must be absent when the subscription has no payment")
	}
}

func TestNewSubscriptionHandler_UnknownSubscription(t *testing.T) {
	disp := &mockDispatcher{}
	resolver := &mockResolver{subscriptions: map[int64]domain.Subscription{}}
	h := NewNewSubscriptionHandler(disp, resolver)

	msg := newSubscriptionMessage(map[string]any{"subscription_id": float64(7)})
	err := h.Handle(context.Background(), msg)

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got: %v", err)
	}
	if notFound.Entity != "subscription" || notFound.ID != 7 {
		t.Errorf("NotFoundError = %+v, want subscription 7", notFound)
	}
	if len(disp.dispatched()) != 0 {
		t.Error("nothing should be dispatched for an unknown subscription")
	}
}

func TestNewSubscriptionHandler_MissingSubscriptionID(t *testing.T) {
	disp := &mockDispatcher{}
	h := NewNewSubscriptionHandler(disp, &mockResolver{})

	msg := newSubscriptionMessage(map[string]any{})
	err := h.Handle(context.Background(), msg)

	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got: %v", err)
	}
	if missing.Field != "subscription_id" {
		t.Errorf("Field = %q, want subscription_id", missing.Field)
	}
}

func TestNewSubscriptionHandler_ResolverErrorPropagates(t *testing.T) {
	disp := &mockDispatcher{}
	resolver := &mockResolver{err: errors.New("connection refused")}
	h := NewNewSubscriptionHandler(disp, resolver)

	msg := newSubscriptionMessage(map[string]any{"subscription_id": float64(7)})
	err := h.Handle(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error")
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		t.Error("infrastructure failure must not be reported as NotFound")
	}
	if len(disp.dispatched()) != 0 {
		t.Error("nothing should be dispatched on resolver failure")
	}
}
