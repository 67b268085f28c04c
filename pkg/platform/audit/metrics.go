package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit recorder and outbox relay.
type Metrics struct {
	EventsRecorded  *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// NewMetrics registers audit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_audit_events_recorded_total",
			Help: "Total number of audit events appended, by action",
		}, []string{"action"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_audit_persist_failures_total",
			Help: "Total number of audit appends that failed and rolled back their operation",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "evidentia_audit_persist_duration_seconds",
			Help:    "Duration of synchronous audit appends",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_outbox_published_total",
			Help: "Total number of outbox notifications relayed to the message bus",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_outbox_publish_failures_total",
			Help: "Total number of outbox relay batches that failed to publish",
		}),
	}
}

// IncEventsRecorded records a successful append.
func (m *Metrics) IncEventsRecorded(action Action) {
	m.EventsRecorded.WithLabelValues(string(action)).Inc()
}

// IncPersistFailures records a failed append.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// ObservePersistDuration records the append latency.
func (m *Metrics) ObservePersistDuration(d time.Duration) {
	m.PersistDuration.Observe(d.Seconds())
}

// AddOutboxPublished records relayed notifications.
func (m *Metrics) AddOutboxPublished(n int) {
	m.OutboxPublished.Add(float64(n))
}

// IncOutboxFailures records a failed relay batch.
func (m *Metrics) IncOutboxFailures() {
	m.OutboxFailures.Inc()
}
