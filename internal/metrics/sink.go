package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Consumer metrics
	MessageReceived(messageType string)
	MessageFailed(messageType string)
	MessagesInFlightIncr()
	MessagesInFlightDecr()

	// Dispatcher metrics
	DispatchCompleted(event string, jobsCreated int, duration time.Duration)
	DispatchError(event string)

	// MessageBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()

	// Worker metrics
	WorkerJobProcessed(outcome string, duration time.Duration)

	// Backlog gauges maintained by the reconciler
	JobsByStateUpdate(state string, count int)
	StaleStartedJobsUpdate(count int)

	// Leader election metrics
	LeaderStatusUpdate(isLeader bool)
}

// Outcome constants for WorkerJobProcessed.
const (
	OutcomeFinished = "finished"
	OutcomeFailed   = "failed"
	OutcomeError    = "error"
)
