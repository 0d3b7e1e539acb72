package api

import (
	"net/http/httptest"
	"testing"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name    string
		req     EventRequest
		wantErr bool
	}{
		{"known type", EventRequest{Type: "user-created"}, false},
		{"test type", EventRequest{Type: "scenarios-test-user"}, false},
		{"subscription type", EventRequest{Type: "new-subscription"}, false},
		{"empty type", EventRequest{}, true},
		{"unknown type", EventRequest{Type: "order-shipped"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEvent(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEvent(%+v) error = %v, wantErr %v", tt.req, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTestFire(t *testing.T) {
	if err := validateTestFire(TestFireRequest{UserID: 1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateTestFire(TestFireRequest{UserID: 0}); err == nil {
		t.Error("zero user_id should be rejected")
	}
	if err := validateTestFire(TestFireRequest{UserID: -1}); err == nil {
		t.Error("negative user_id should be rejected")
	}
}

func TestValidateJobState(t *testing.T) {
	for _, state := range domain.AllJobStates() {
		if _, err := validateJobState(string(state)); err != nil {
			t.Errorf("state %q should be valid: %v", state, err)
		}
	}
	if _, err := validateJobState("running"); err == nil {
		t.Error("unknown state should be rejected")
	}
	if _, err := validateJobState(""); err == nil {
		t.Error("empty state should be rejected")
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"", DefaultLimit, 0, false},
		{"limit=50", 50, 0, false},
		{"limit=50&offset=10", 50, 10, false},
		{"limit=0", DefaultLimit, 0, false},
		{"limit=1001", 0, 0, true},
		{"limit=-1", 0, 0, true},
		{"offset=-1", 0, 0, true},
		{"limit=abc", 0, 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/v1/jobs?"+tt.query, nil)
		limit, offset, err := parsePagination(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePagination(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if err == nil && (limit != tt.wantLimit || offset != tt.wantOffset) {
			t.Errorf("parsePagination(%q) = (%d, %d), want (%d, %d)", tt.query, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
