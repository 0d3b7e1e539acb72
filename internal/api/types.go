package api

import "time"

// EventRequest is the ingest payload: an inbound domain event from
// another module (users, subscriptions, admin).
type EventRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EventAcceptedResponse acknowledges an event handed to the transport.
type EventAcceptedResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// TestFireRequest fires a test event for one user.
type TestFireRequest struct {
	UserID int64 `json:"user_id"`
}

type JobResponse struct {
	ID         string         `json:"id"`
	OwnerKind  string         `json:"owner_kind"`
	OwnerID    string         `json:"owner_id"`
	State      string         `json:"state"`
	RetryCount int            `json:"retry_count"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ScenarioResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListScenariosResponse struct {
	Scenarios []ScenarioResponse `json:"scenarios"`
}

type CapabilitiesResponse struct {
	Capabilities []string `json:"capabilities"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
