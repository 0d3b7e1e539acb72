package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

const breakerKey = "analytics"

// Breaker is the subset of the circuit breaker used by the sink.
type Breaker interface {
	Allow(key string) error
	RecordSuccess(key string)
	RecordFailure(key string)
}

// RedisSink keeps time-bucketed transition counters in Redis, one key
// per owner, state and bucket. It supplements the authoritative Postgres
// stats tables with cheap recent-activity data for dashboards.
type RedisSink struct {
	client    *redis.Client
	breaker   Breaker // optional, nil = every write attempted
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client, window, retention time.Duration) *RedisSink {
	return &RedisSink{client: client, window: window, retention: retention}
}

// WithBreaker guards Redis writes with a circuit breaker so a dead
// Redis cannot slow down job processing.
func (s *RedisSink) WithBreaker(b Breaker) *RedisSink {
	s.breaker = b
	return s
}

// Record counts one state transition. Failures are logged, never
// propagated; analytics must not affect job correctness.
func (s *RedisSink) Record(ctx context.Context, owner domain.Owner, state domain.JobState, at time.Time) {
	if s.breaker != nil {
		if err := s.breaker.Allow(breakerKey); err != nil {
			return
		}
	}

	key := buildKey(owner, state, at, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		if s.breaker != nil {
			s.breaker.RecordFailure(breakerKey)
		}
		log.Printf("analytics: redis write failed: %v", err)
		return
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess(breakerKey)
	}
}

func buildKey(owner domain.Owner, state domain.JobState, t time.Time, window time.Duration) string {
	prefix := "t"
	if owner.Kind() == domain.OwnerKindElement {
		prefix = "e"
	}
	return fmt.Sprintf("%s:%s:%s:%s", prefix, owner.ID(), state, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
