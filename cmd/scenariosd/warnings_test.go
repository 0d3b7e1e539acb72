package main

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/mikoczy/crm-scenarios-module/internal/config"
)

// captureLogOutput calls logConfigWarnings with the given config and returns
// the captured log output as a string.
func captureLogOutput(cfg *config.Config) string {
	var buf bytes.Buffer
	original := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(original)

	logConfigWarnings(cfg)
	return buf.String()
}

func TestLogConfigWarnings_WorkerDisabled(t *testing.T) {
	cfg := &config.Config{
		WorkerEnabled:    false,
		TransportMode:    "redis",
		ReconcileEnabled: true,
		MetricsEnabled:   true,
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P0]: WORKER_ENABLED=false") {
		t.Error("expected worker-disabled P0 warning, got:", output)
	}
}

func TestLogConfigWarnings_ChannelTransport(t *testing.T) {
	cfg := &config.Config{
		WorkerEnabled:    true,
		TransportMode:    "channel",
		ReconcileEnabled: true,
		MetricsEnabled:   true,
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: TRANSPORT_MODE=channel") {
		t.Error("expected channel transport P1 warning, got:", output)
	}
}

func TestLogConfigWarnings_ReconcilerDisabled(t *testing.T) {
	cfg := &config.Config{
		WorkerEnabled:    true,
		TransportMode:    "redis",
		ReconcileEnabled: false,
		MetricsEnabled:   true,
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: RECONCILE_ENABLED=false") {
		t.Error("expected reconciler-disabled P1 warning, got:", output)
	}
}

func TestLogConfigWarnings_AnalyticsWithoutBreaker(t *testing.T) {
	cfg := &config.Config{
		WorkerEnabled:           true,
		TransportMode:           "redis",
		ReconcileEnabled:        true,
		MetricsEnabled:          true,
		AnalyticsEnabled:        true,
		CircuitBreakerThreshold: 0,
	}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P2]: ANALYTICS_ENABLED=true with CIRCUIT_BREAKER_THRESHOLD=0") {
		t.Error("expected analytics-without-breaker P2 warning, got:", output)
	}
}

func TestLogConfigWarnings_CleanConfig(t *testing.T) {
	cfg := &config.Config{
		WorkerEnabled:           true,
		TransportMode:           "redis",
		ReconcileEnabled:        true,
		MetricsEnabled:          true,
		AnalyticsEnabled:        true,
		CircuitBreakerThreshold: 5,
	}
	output := captureLogOutput(cfg)

	if strings.Contains(output, "WARNING") {
		t.Error("expected no warnings for clean config, got:", output)
	}
}
