package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scenario is an automation workflow owned by the admin subsystem.
// The engine only reads scenarios to decide trigger eligibility.
type Scenario struct {
	ID      uuid.UUID
	Name    string
	Enabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Trigger is an entry point of a scenario, bound to one canonical
// domain event name.
type Trigger struct {
	ID         uuid.UUID
	ScenarioID uuid.UUID

	Name  string
	Event string // canonical event name, e.g. "user_created"
}

// Element is a non-entry node of a scenario's workflow graph.
type Element struct {
	ID         uuid.UUID
	ScenarioID uuid.UUID

	Name string
	Type string // e.g. "email", "wait", "banner"
}
