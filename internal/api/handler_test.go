package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

type mockAPIStore struct {
	mu        sync.Mutex
	jobs      []domain.Job
	jobsErr   error
	scenarios []domain.Scenario
	enabled   map[uuid.UUID]bool
	setErr    error
	lastState domain.JobState
}

func (s *mockAPIStore) JobsByState(ctx context.Context, state domain.JobState, limit, offset int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastState = state
	return s.jobs, s.jobsErr
}

func (s *mockAPIStore) ListScenarios(ctx context.Context, limit, offset int) ([]domain.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenarios, nil
}

func (s *mockAPIStore) SetScenarioEnabled(ctx context.Context, scenarioID uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	if s.enabled == nil {
		s.enabled = make(map[uuid.UUID]bool)
	}
	s.enabled[scenarioID] = enabled
	return nil
}

type mockEmitter struct {
	mu       sync.Mutex
	messages []domain.Message
	err      error
}

func (e *mockEmitter) Emit(ctx context.Context, msg domain.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

func (e *mockEmitter) emitted() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]domain.Message, len(e.messages))
	copy(result, e.messages)
	return result
}

type staticCapabilities []string

func (c staticCapabilities) Names() []string { return c }

func newTestHandler() (*Handler, *mockAPIStore, *mockEmitter) {
	store := &mockAPIStore{}
	emitter := &mockEmitter{}
	return NewHandler(store, emitter), store, emitter
}

func TestHealth_Simple(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error { return errors.New("connection refused") }

func TestHealth_VerboseDegraded(t *testing.T) {
	h, _, _ := newTestHandler()
	h.WithHealthChecker(failingPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestIngestEvent_Accepted(t *testing.T) {
	h, _, emitter := newTestHandler()

	body := `{"type":"user-created","payload":{"user_id":42}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	messages := emitter.emitted()
	if len(messages) != 1 {
		t.Fatalf("emitted %d messages, want 1", len(messages))
	}
	if messages[0].Type != domain.MessageTypeUserCreated {
		t.Errorf("type = %q, want user-created", messages[0].Type)
	}
	if got := messages[0].Payload["user_id"]; got != float64(42) {
		t.Errorf("payload user_id = %v, want 42", got)
	}
}

func TestIngestEvent_UnknownType(t *testing.T) {
	h, _, emitter := newTestHandler()

	body := `{"type":"order-shipped"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(emitter.emitted()) != 0 {
		t.Error("nothing should be emitted for an unknown type")
	}
}

func TestIngestEvent_EmitterFailure(t *testing.T) {
	store := &mockAPIStore{}
	emitter := &mockEmitter{err: errors.New("buffer full")}
	h := NewHandler(store, emitter)

	body := `{"type":"user-created","payload":{"user_id":42}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTestFire(t *testing.T) {
	h, _, emitter := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/events/test-fire", strings.NewReader(`{"user_id":7}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	messages := emitter.emitted()
	if len(messages) != 1 {
		t.Fatalf("emitted %d messages, want 1", len(messages))
	}
	if messages[0].Type != domain.MessageTypeTestUser {
		t.Errorf("type = %q, want %q", messages[0].Type, domain.MessageTypeTestUser)
	}
}

func TestTestFire_InvalidUserID(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/events/test-fire", strings.NewReader(`{"user_id":0}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	h, store, _ := newTestHandler()
	startedAt := time.Now().UTC()
	store.jobs = []domain.Job{{
		ID:         uuid.New(),
		Owner:      domain.TriggerOwner(uuid.New()),
		State:      domain.JobStateStarted,
		RetryCount: 1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
		StartedAt:  &startedAt,
	}}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs?state=started", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if store.lastState != domain.JobStateStarted {
		t.Errorf("queried state = %q, want started", store.lastState)
	}

	var resp ListJobsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(resp.Jobs))
	}
	if resp.Jobs[0].OwnerKind != "trigger" {
		t.Errorf("owner_kind = %q, want trigger", resp.Jobs[0].OwnerKind)
	}
	if resp.Jobs[0].StartedAt == "" {
		t.Error("started_at should be set")
	}
	if resp.Jobs[0].FinishedAt != "" {
		t.Error("finished_at should be empty")
	}
}

func TestListJobs_InvalidState(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs?state=running", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListScenarios(t *testing.T) {
	h, store, _ := newTestHandler()
	store.scenarios = []domain.Scenario{{
		ID:        uuid.New(),
		Name:      "onboarding",
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}}

	req := httptest.NewRequest(http.MethodGet, "/v1/scenarios", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ListScenariosResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Scenarios) != 1 || resp.Scenarios[0].Name != "onboarding" {
		t.Errorf("scenarios = %+v", resp.Scenarios)
	}
}

func TestSetScenarioEnabled(t *testing.T) {
	h, store, _ := newTestHandler()
	scenarioID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+scenarioID.String()+"/enable", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body: %s", rec.Code, rec.Body.String())
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if enabled, ok := store.enabled[scenarioID]; !ok || !enabled {
		t.Errorf("scenario enabled = (%v, %v), want (true, true)", enabled, ok)
	}
}

func TestSetScenarioEnabled_Disable(t *testing.T) {
	h, store, _ := newTestHandler()
	scenarioID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+scenarioID.String()+"/disable", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if enabled, ok := store.enabled[scenarioID]; !ok || enabled {
		t.Errorf("scenario enabled = (%v, %v), want (false, true)", enabled, ok)
	}
}

func TestSetScenarioEnabled_NotFound(t *testing.T) {
	h, store, _ := newTestHandler()
	store.setErr = sql.ErrNoRows

	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+uuid.NewString()+"/enable", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSetScenarioEnabled_InvalidID(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/not-a-uuid/enable", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListCapabilities(t *testing.T) {
	h, _, _ := newTestHandler()
	h.WithCapabilities(staticCapabilities{"email", "log"})

	req := httptest.NewRequest(http.MethodGet, "/v1/capabilities", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp CapabilitiesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Capabilities) != 2 {
		t.Errorf("capabilities = %v, want 2 entries", resp.Capabilities)
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodDelete, "/v1/jobs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
