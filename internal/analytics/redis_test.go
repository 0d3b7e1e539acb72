package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

func TestBuildKey_TriggerOwner(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	owner := domain.TriggerOwner(id)
	at := time.Date(2024, 3, 15, 10, 7, 30, 0, time.UTC)

	got := buildKey(owner, domain.JobStateFinished, at, time.Minute)
	want := "t:11111111-2222-3333-4444-555555555555:finished:202403151007"
	if got != want {
		t.Errorf("buildKey = %q, want %q", got, want)
	}
}

func TestBuildKey_ElementOwner(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	owner := domain.ElementOwner(id)
	at := time.Date(2024, 3, 15, 10, 7, 30, 0, time.UTC)

	got := buildKey(owner, domain.JobStateFailed, at, time.Hour)
	want := "e:11111111-2222-3333-4444-555555555555:failed:2024031510"
	if got != want {
		t.Errorf("buildKey = %q, want %q", got, want)
	}
}

func TestTruncateToBucket(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 7, 30, 0, time.UTC)

	tests := []struct {
		window time.Duration
		want   string
	}{
		{time.Minute, "202403151007"},
		{5 * time.Minute, "202403151005"},
		{time.Hour, "2024031510"},
		{30 * time.Second, "202403151007"}, // unknown windows fall back to minute
	}
	for _, tt := range tests {
		if got := truncateToBucket(at, tt.window); got != tt.want {
			t.Errorf("truncateToBucket(window=%v) = %q, want %q", tt.window, got, tt.want)
		}
	}
}

func TestTruncateToBucket_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2024, 3, 15, 11, 7, 0, 0, loc) // 10:07 UTC

	if got := truncateToBucket(at, time.Minute); got != "202403151007" {
		t.Errorf("truncateToBucket = %q, want 202403151007", got)
	}
}
