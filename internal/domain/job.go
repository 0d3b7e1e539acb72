package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobStateCreated   JobState = "created"
	JobStateScheduled JobState = "scheduled" // job is claimed to run at/after a future point
	JobStateStarted   JobState = "started"   // execution has begun
	JobStateFinished  JobState = "finished"
	JobStateFailed    JobState = "failed"
)

// AllJobStates returns every state in lifecycle order.
func AllJobStates() []JobState {
	return []JobState{
		JobStateCreated,
		JobStateScheduled,
		JobStateStarted,
		JobStateFinished,
		JobStateFailed,
	}
}

func (s JobState) Valid() bool {
	switch s {
	case JobStateCreated, JobStateScheduled, JobStateStarted, JobStateFinished, JobStateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected from s.
func (s JobState) Terminal() bool {
	return s == JobStateFinished || s == JobStateFailed
}

type OwnerKind string

const (
	OwnerKindTrigger OwnerKind = "trigger"
	OwnerKindElement OwnerKind = "element"
)

// Owner identifies the scenario node a job executes: exactly one of a
// trigger or an element. The fields are unexported so a job cannot be
// given both (or neither) owner ids by construction.
type Owner struct {
	kind OwnerKind
	id   uuid.UUID
}

// TriggerOwner returns an Owner for a trigger-originated job.
func TriggerOwner(id uuid.UUID) Owner {
	return Owner{kind: OwnerKindTrigger, id: id}
}

// ElementOwner returns an Owner for an element-originated job.
func ElementOwner(id uuid.UUID) Owner {
	return Owner{kind: OwnerKindElement, id: id}
}

func (o Owner) Kind() OwnerKind { return o.kind }

func (o Owner) ID() uuid.UUID { return o.id }

// IsZero reports whether the owner was never set.
func (o Owner) IsZero() bool { return o.kind == "" }

func (o Owner) String() string {
	if o.IsZero() {
		return "owner(none)"
	}
	return string(o.kind) + ":" + o.id.String()
}

// Job is one pending/active/completed execution of a trigger or element.
type Job struct {
	ID    uuid.UUID
	Owner Owner

	// Parameters are passed through unchanged to the executor.
	Parameters map[string]any

	// Context carries event provenance (e.g. source message type).
	// Nil when the creator supplied none.
	Context map[string]any

	State      JobState
	RetryCount int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
