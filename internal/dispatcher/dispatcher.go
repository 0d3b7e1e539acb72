// Package dispatcher converts domain events into scenario jobs.
//
// Dispatch resolves the enabled triggers bound to an event name and
// creates one trigger job per match. It performs no deduplication:
// the delivery transport is at-least-once, and replays create new jobs.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// ErrRegistryUnavailable is returned when the scenario registry cannot
// be queried. No jobs are created in that case.
var ErrRegistryUnavailable = errors.New("scenario registry unavailable")

// ParamUserID is the parameters key carrying the event's subject user.
const ParamUserID = "user_id"

// Registry exposes the read side of the scenario store.
type Registry interface {
	// EnabledTriggersByEvent returns all triggers bound to the given
	// canonical event name whose scenario is currently enabled.
	EnabledTriggersByEvent(ctx context.Context, event string) ([]domain.Trigger, error)
}

// JobCreator creates trigger jobs. Implementations must persist the job
// and bump the trigger's created-state counter atomically.
type JobCreator interface {
	AddTrigger(ctx context.Context, triggerID uuid.UUID, params, jobContext map[string]any) (domain.Job, error)
}

// MetricsSink defines the interface for recording dispatch metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DispatchCompleted(event string, jobsCreated int, duration time.Duration)
	DispatchError(event string)
}

type Dispatcher struct {
	registry Registry
	jobs     JobCreator
	metrics  MetricsSink // optional, nil = disabled
}

func New(registry Registry, jobs JobCreator) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		jobs:     jobs,
	}
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// Dispatch creates one job for every enabled trigger bound to event.
//
// The job parameters are params plus a "user_id" entry for userID;
// user_id always reflects userID even if params carries its own.
// jobContext is stored on the job unchanged when non-empty.
//
// A registry failure creates no jobs. A job-creation failure stops the
// fan-out at the failing trigger; jobs already created remain.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, userID int64, params, jobContext map[string]any) error {
	started := time.Now()

	triggers, err := d.registry.EnabledTriggersByEvent(ctx, event)
	if err != nil {
		if d.metrics != nil {
			d.metrics.DispatchError(event)
		}
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	merged := mergeParams(userID, params)

	created := 0
	for _, trigger := range triggers {
		if _, err := d.jobs.AddTrigger(ctx, trigger.ID, merged, jobContext); err != nil {
			if d.metrics != nil {
				d.metrics.DispatchError(event)
			}
			return fmt.Errorf("add trigger job %s: %w", trigger.ID, err)
		}
		created++
	}

	if d.metrics != nil {
		d.metrics.DispatchCompleted(event, created, time.Since(started))
	}

	if created > 0 {
		log.Printf("dispatcher: event=%s user=%d jobs_created=%d", event, userID, created)
	}
	return nil
}

// mergeParams copies params and forces the user_id entry.
func mergeParams(userID int64, params map[string]any) map[string]any {
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged[ParamUserID] = userID
	return merged
}
