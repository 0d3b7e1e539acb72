package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// TRANSPORT_MODE must be "channel" or "redis"
	switch cfg.TransportMode {
	case "", "channel":
	case "redis":
		if cfg.RedisAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "REDIS_ADDR",
				Message: "required when TRANSPORT_MODE is 'redis'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "TRANSPORT_MODE",
			Message: fmt.Sprintf("must be 'channel' or 'redis', got %q", cfg.TransportMode),
		})
	}

	// Analytics writes to Redis regardless of the transport mode.
	if cfg.AnalyticsEnabled && cfg.RedisAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "REDIS_ADDR",
			Message: "required when ANALYTICS_ENABLED is 'true'",
		})
	}

	durations := []struct {
		field string
		value string
	}{
		{"DB_CONN_MAX_LIFETIME", cfg.DBConnMaxLifetimeStr},
		{"DB_CONN_MAX_IDLE_TIME", cfg.DBConnMaxIdleTimeStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"CONSUMER_DRAIN_TIMEOUT", cfg.ConsumerDrainTimeoutStr},
		{"WORKER_POLL_INTERVAL", cfg.WorkerPollIntervalStr},
		{"RECONCILE_INTERVAL", cfg.ReconcileIntervalStr},
		{"RECONCILE_STALE_THRESHOLD", cfg.ReconcileStaleThresholdStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
		{"ANALYTICS_WINDOW", cfg.AnalyticsWindowStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr},
		{"LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr},
	}
	for _, dur := range durations {
		if dur.value == "" {
			continue
		}
		d, err := time.ParseDuration(dur.value)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   dur.field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   dur.field,
				Message: "must be positive",
			})
		}
	}

	if cfg.CircuitBreakerThreshold < 0 {
		errs = append(errs, ValidationError{
			Field:   "CIRCUIT_BREAKER_THRESHOLD",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
