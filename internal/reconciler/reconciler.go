// Package reconciler exports job backlog health.
//
// It periodically counts jobs per state and jobs stuck in started past
// a threshold, and pushes both to the metrics sink. It never transitions
// jobs: stuck jobs are an operator signal, not something the engine can
// safely retry on its own.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// Store defines the read-only queries the reconciler needs.
type Store interface {
	CountJobsByState(ctx context.Context) (map[domain.JobState]int, error)
	CountStaleStarted(ctx context.Context, olderThan time.Time) (int, error)
}

// MetricsSink receives the gauges the reconciler maintains.
type MetricsSink interface {
	JobsByStateUpdate(state string, count int)
	StaleStartedJobsUpdate(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 1 minute.
	Interval time.Duration

	// StaleThreshold is the age after which a started job counts as stuck.
	// Default: 10 minutes.
	StaleThreshold time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		StaleThreshold: 10 * time.Minute,
	}
}

type Reconciler struct {
	config  Config
	store   Store
	metrics MetricsSink
	clock   func() time.Time
}

// New creates a new Reconciler.
func New(config Config, store Store, metrics MetricsSink) *Reconciler {
	return &Reconciler{
		config:  config,
		store:   store,
		metrics: metrics,
		clock:   time.Now,
	}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, stale_threshold=%s)",
		r.config.Interval, r.config.StaleThreshold)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one reconciliation cycle.
func (r *Reconciler) runCycle(ctx context.Context) {
	counts, err := r.store.CountJobsByState(ctx)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("reconciler: failed to count jobs: %v", err)
		return
	}
	for state, count := range counts {
		r.metrics.JobsByStateUpdate(string(state), count)
	}

	threshold := r.clock().UTC().Add(-r.config.StaleThreshold)
	stale, err := r.store.CountStaleStarted(ctx, threshold)
	if err != nil {
		log.Printf("reconciler: failed to count stale started jobs: %v", err)
		return
	}
	r.metrics.StaleStartedJobsUpdate(stale)

	if stale > 0 {
		log.Printf("reconciler: %d jobs stuck in started longer than %s", stale, r.config.StaleThreshold)
	}
}
