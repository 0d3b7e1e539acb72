package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Consumer metrics
	messagesReceivedTotal *prometheus.CounterVec
	messagesFailedTotal   *prometheus.CounterVec
	messagesInFlight      prometheus.Gauge

	// Dispatcher metrics
	dispatchesTotal     *prometheus.CounterVec
	dispatchErrorsTotal *prometheus.CounterVec
	jobsCreatedTotal    *prometheus.CounterVec
	dispatchDuration    prometheus.Histogram

	// MessageBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Worker metrics
	workerJobsTotal   *prometheus.CounterVec
	workerJobDuration prometheus.Histogram

	// Backlog gauges
	jobsByState      *prometheus.GaugeVec
	staleStartedJobs prometheus.Gauge

	// Leader election metrics
	leaderStatus prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initConsumerMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initBusMetrics(reg)
	s.initWorkerMetrics(reg)
	s.initBacklogMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initConsumerMetrics(reg prometheus.Registerer) {
	s.messagesReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenarios_consumer_messages_received_total",
		Help: "Total number of messages received per message type.",
	}, []string{"type"})
	s.messagesFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenarios_consumer_messages_failed_total",
		Help: "Total number of messages whose handling failed, per message type.",
	}, []string{"type"})
	s.messagesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenarios_consumer_messages_in_flight",
		Help: "Number of messages currently being handled.",
	})

	s.register(reg, s.messagesReceivedTotal, "scenarios_consumer_messages_received_total")
	s.register(reg, s.messagesFailedTotal, "scenarios_consumer_messages_failed_total")
	s.register(reg, s.messagesInFlight, "scenarios_consumer_messages_in_flight")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenarios_dispatcher_dispatches_total",
		Help: "Total number of completed dispatches per event.",
	}, []string{"event"})
	s.dispatchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenarios_dispatcher_errors_total",
		Help: "Total number of failed dispatches per event.",
	}, []string{"event"})
	s.jobsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenarios_dispatcher_jobs_created_total",
		Help: "Total number of trigger jobs created per event.",
	}, []string{"event"})
	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scenarios_dispatcher_dispatch_duration_seconds",
		Help:    "Duration of each dispatch in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	})

	s.register(reg, s.dispatchesTotal, "scenarios_dispatcher_dispatches_total")
	s.register(reg, s.dispatchErrorsTotal, "scenarios_dispatcher_errors_total")
	s.register(reg, s.jobsCreatedTotal, "scenarios_dispatcher_jobs_created_total")
	s.register(reg, s.dispatchDuration, "scenarios_dispatcher_dispatch_duration_seconds")
}

func (s *PrometheusSink) initBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenarios_bus_buffer_size",
		Help: "Current number of messages in the bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenarios_bus_buffer_capacity",
		Help: "Configured capacity of the bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenarios_bus_buffer_saturation",
		Help: "Bus buffer fill ratio between 0 and 1.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scenarios_bus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "scenarios_bus_buffer_size")
	s.register(reg, s.bufferCapacity, "scenarios_bus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "scenarios_bus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "scenarios_bus_emit_errors_total")
}

func (s *PrometheusSink) initWorkerMetrics(reg prometheus.Registerer) {
	s.workerJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scenarios_worker_jobs_total",
		Help: "Total number of jobs processed by the worker, per outcome.",
	}, []string{"outcome"})
	s.workerJobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scenarios_worker_job_duration_seconds",
		Help:    "Duration of one job lifecycle pass in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	s.register(reg, s.workerJobsTotal, "scenarios_worker_jobs_total")
	s.register(reg, s.workerJobDuration, "scenarios_worker_job_duration_seconds")
}

func (s *PrometheusSink) initBacklogMetrics(reg prometheus.Registerer) {
	s.jobsByState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scenarios_jobs_by_state",
		Help: "Number of jobs currently in each state.",
	}, []string{"state"})
	s.staleStartedJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenarios_jobs_stale_started",
		Help: "Number of jobs stuck in started past the stale threshold.",
	})

	s.register(reg, s.jobsByState, "scenarios_jobs_by_state")
	s.register(reg, s.staleStartedJobs, "scenarios_jobs_stale_started")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenarios_leader_status",
		Help: "1 when this instance holds the leader lock, 0 otherwise.",
	})

	s.register(reg, s.leaderStatus, "scenarios_leader_status")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Consumer metrics implementation

func (s *PrometheusSink) MessageReceived(messageType string) {
	s.messagesReceivedTotal.WithLabelValues(messageType).Inc()
}

func (s *PrometheusSink) MessageFailed(messageType string) {
	s.messagesFailedTotal.WithLabelValues(messageType).Inc()
}

func (s *PrometheusSink) MessagesInFlightIncr() {
	s.messagesInFlight.Inc()
}

func (s *PrometheusSink) MessagesInFlightDecr() {
	s.messagesInFlight.Dec()
}

// Dispatcher metrics implementation

func (s *PrometheusSink) DispatchCompleted(event string, jobsCreated int, duration time.Duration) {
	s.dispatchesTotal.WithLabelValues(event).Inc()
	s.jobsCreatedTotal.WithLabelValues(event).Add(float64(jobsCreated))
	s.dispatchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DispatchError(event string) {
	s.dispatchErrorsTotal.WithLabelValues(event).Inc()
}

// MessageBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Worker metrics implementation

func (s *PrometheusSink) WorkerJobProcessed(outcome string, duration time.Duration) {
	s.workerJobsTotal.WithLabelValues(outcome).Inc()
	s.workerJobDuration.Observe(duration.Seconds())
}

// Backlog gauges implementation

func (s *PrometheusSink) JobsByStateUpdate(state string, count int) {
	s.jobsByState.WithLabelValues(state).Set(float64(count))
}

func (s *PrometheusSink) StaleStartedJobsUpdate(count int) {
	s.staleStartedJobs.Set(float64(count))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusUpdate(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

var _ Sink = (*PrometheusSink)(nil)
