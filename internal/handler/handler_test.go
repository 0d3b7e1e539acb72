package handler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// mockDispatcher records Dispatch calls.
type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

type dispatchCall struct {
	Event      string
	UserID     int64
	Params     map[string]any
	JobContext map[string]any
}

func (d *mockDispatcher) Dispatch(ctx context.Context, event string, userID int64, params, jobContext map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, dispatchCall{Event: event, UserID: userID, Params: params, JobContext: jobContext})
	return nil
}

func (d *mockDispatcher) dispatched() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]dispatchCall, len(d.calls))
	copy(result, d.calls)
	return result
}

func TestTestUserHandler_Dispatches(t *testing.T) {
	disp := &mockDispatcher{}
	h := NewTestUserHandler(disp)

	msg := NewTestUserMessage(42)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	calls := disp.dispatched()
	if len(calls) != 1 {
		t.Fatalf("dispatched %d times, want 1", len(calls))
	}
	if calls[0].Event != domain.EventTestUser {
		t.Errorf("event = %q, want %q", calls[0].Event, domain.EventTestUser)
	}
	if calls[0].UserID != 42 {
		t.Errorf("userID = %d, want 42", calls[0].UserID)
	}
	if got := calls[0].JobContext[domain.ContextKeyMessageType]; got != string(domain.MessageTypeTestUser) {
		t.Errorf("job context message_type = %v, want %q", got, domain.MessageTypeTestUser)
	}
}

func TestTestUserHandler_MissingUserID(t *testing.T) {
	disp := &mockDispatcher{}
	h := NewTestUserHandler(disp)

	msg := domain.NewMessage(domain.MessageTypeTestUser, map[string]any{})
	err := h.Handle(context.Background(), msg)

	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got: %v", err)
	}
	if missing.Field != "user_id" {
		t.Errorf("Field = %q, want user_id", missing.Field)
	}
	if len(disp.dispatched()) != 0 {
		t.Error("nothing should be dispatched on validation failure")
	}
}

func TestUserCreatedHandler_Dispatches(t *testing.T) {
	disp := &mockDispatcher{}
	h := NewUserCreatedHandler(disp)

	// JSON transports decode numbers as float64.
	msg := domain.NewMessage(domain.MessageTypeUserCreated, map[string]any{"user_id": float64(42)})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	calls := disp.dispatched()
	if len(calls) != 1 {
		t.Fatalf("dispatched %d times, want 1", len(calls))
	}
	if calls[0].Event != domain.EventUserCreated {
		t.Errorf("event = %q, want %q", calls[0].Event, domain.EventUserCreated)
	}
	if calls[0].UserID != 42 {
		t.Errorf("userID = %d, want 42", calls[0].UserID)
	}
}

func TestUserCreatedHandler_MissingUserID(t *testing.T) {
	disp := &mockDispatcher{}
	h := NewUserCreatedHandler(disp)

	msg := domain.NewMessage(domain.MessageTypeUserCreated, nil)
	err := h.Handle(context.Background(), msg)

	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got: %v", err)
	}
}

func TestInt64Field(t *testing.T) {
	payload := map[string]any{
		"as_int64":   int64(7),
		"as_int":     7,
		"as_float64": float64(7),
		"as_string":  "7",
		"as_nil":     nil,
	}

	for _, field := range []string{"as_int64", "as_int", "as_float64"} {
		got, ok := int64Field(payload, field)
		if !ok || got != 7 {
			t.Errorf("int64Field(%q) = (%d, %v), want (7, true)", field, got, ok)
		}
	}
	for _, field := range []string{"as_string", "as_nil", "absent"} {
		if _, ok := int64Field(payload, field); ok {
			t.Errorf("int64Field(%q) should not succeed", field)
		}
	}
}
