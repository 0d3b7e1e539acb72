package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) MessageReceived(messageType string)                                 {}
func (n *NoopSink) MessageFailed(messageType string)                                   {}
func (n *NoopSink) MessagesInFlightIncr()                                              {}
func (n *NoopSink) MessagesInFlightDecr()                                              {}
func (n *NoopSink) DispatchCompleted(event string, jobsCreated int, d time.Duration)   {}
func (n *NoopSink) DispatchError(event string)                                         {}
func (n *NoopSink) BufferSizeUpdate(size int)                                          {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                     {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                          {}
func (n *NoopSink) EmitError()                                                         {}
func (n *NoopSink) WorkerJobProcessed(outcome string, duration time.Duration)          {}
func (n *NoopSink) JobsByStateUpdate(state string, count int)                          {}
func (n *NoopSink) StaleStartedJobsUpdate(count int)                                   {}
func (n *NoopSink) LeaderStatusUpdate(isLeader bool)                                   {}

var _ Sink = (*NoopSink)(nil)
