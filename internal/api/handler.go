package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
	"github.com/mikoczy/crm-scenarios-module/internal/handler"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Store interface {
	JobsByState(ctx context.Context, state domain.JobState, limit, offset int) ([]domain.Job, error)
	ListScenarios(ctx context.Context, limit, offset int) ([]domain.Scenario, error)
	SetScenarioEnabled(ctx context.Context, scenarioID uuid.UUID, enabled bool) error
}

// Emitter hands an inbound message to the transport.
type Emitter interface {
	Emit(ctx context.Context, msg domain.Message) error
}

// Capabilities lists the registered handler/executor capability names.
type Capabilities interface {
	Names() []string
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store        Store
	emitter      Emitter
	capabilities Capabilities  // optional
	db           HealthChecker // optional
}

func NewHandler(store Store, emitter Emitter) *Handler {
	return &Handler{store: store, emitter: emitter}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithCapabilities exposes the capability registry on /v1/capabilities.
func (h *Handler) WithCapabilities(c Capabilities) *Handler {
	h.capabilities = c
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/v1/events" && r.Method == http.MethodPost:
		h.ingestEvent(w, r)

	case path == "/v1/events/test-fire" && r.Method == http.MethodPost:
		h.testFire(w, r)

	case path == "/v1/jobs" && r.Method == http.MethodGet:
		h.listJobs(w, r)

	case path == "/v1/scenarios" && r.Method == http.MethodGet:
		h.listScenarios(w, r)

	case strings.HasPrefix(path, "/v1/scenarios/") && r.Method == http.MethodPost:
		h.setScenarioEnabled(w, r)

	case path == "/v1/capabilities" && r.Method == http.MethodGet:
		h.listCapabilities(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateEvent(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := domain.NewMessage(domain.MessageType(req.Type), req.Payload)
	if err := h.emitter.Emit(r.Context(), msg); err != nil {
		log.Printf("api: emit event error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue event")
		return
	}

	writeJSON(w, http.StatusAccepted, EventAcceptedResponse{ID: msg.ID.String(), Type: req.Type})
}

func (h *Handler) testFire(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req TestFireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateTestFire(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := handler.NewTestUserMessage(req.UserID)
	if err := h.emitter.Emit(r.Context(), msg); err != nil {
		log.Printf("api: emit test event error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue event")
		return
	}

	writeJSON(w, http.StatusAccepted, EventAcceptedResponse{ID: msg.ID.String(), Type: string(msg.Type)})
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	state, err := validateJobState(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.store.JobsByState(r.Context(), state, limit, offset)
	if err != nil {
		log.Printf("api: list jobs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = jobResponse(job)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listScenarios(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scenarios, err := h.store.ListScenarios(r.Context(), limit, offset)
	if err != nil {
		log.Printf("api: list scenarios error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list scenarios")
		return
	}

	resp := ListScenariosResponse{Scenarios: make([]ScenarioResponse, len(scenarios))}
	for i, sc := range scenarios {
		resp.Scenarios[i] = ScenarioResponse{
			ID:        sc.ID.String(),
			Name:      sc.Name,
			Enabled:   sc.Enabled,
			CreatedAt: formatTime(sc.CreatedAt),
			UpdatedAt: formatTime(sc.UpdatedAt),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) setScenarioEnabled(w http.ResponseWriter, r *http.Request) {
	// Path: /v1/scenarios/{id}/enable or /v1/scenarios/{id}/disable
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "scenarios" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var enabled bool
	switch parts[3] {
	case "enable":
		enabled = true
	case "disable":
		enabled = false
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	scenarioID, err := uuid.Parse(parts[2])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}

	if err := h.store.SetScenarioEnabled(r.Context(), scenarioID, enabled); err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		log.Printf("api: set scenario enabled error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update scenario")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCapabilities(w http.ResponseWriter, r *http.Request) {
	resp := CapabilitiesResponse{Capabilities: []string{}}
	if h.capabilities != nil {
		resp.Capabilities = h.capabilities.Names()
	}
	writeJSON(w, http.StatusOK, resp)
}

func jobResponse(job domain.Job) JobResponse {
	resp := JobResponse{
		ID:         job.ID.String(),
		OwnerKind:  string(job.Owner.Kind()),
		OwnerID:    job.Owner.ID().String(),
		State:      string(job.State),
		RetryCount: job.RetryCount,
		Parameters: job.Parameters,
		Context:    job.Context,
		CreatedAt:  formatTime(job.CreatedAt),
		UpdatedAt:  formatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		resp.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = formatTime(*job.FinishedAt)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
