package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evidence kernel.
type Metrics struct {
	DraftsCreated      *prometheus.CounterVec
	AttachmentBytes    prometheus.Counter
	EvidenceSealed     *prometheus.CounterVec
	SealReplays        prometheus.Counter
	PreconditionFailed *prometheus.CounterVec
	Quarantined        *prometheus.CounterVec
	CommandsApplied    *prometheus.CounterVec
	CommandReplays     *prometheus.CounterVec
	CommandRejected    *prometheus.CounterVec
	Supersessions      prometheus.Counter
	SealDuration       prometheus.Histogram
	StoreRetries       prometheus.Counter
}

// New registers the evidence metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DraftsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_drafts_created_total",
			Help: "Total number of drafts created, by ingestion method",
		}, []string{"method"}),
		AttachmentBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_attachment_bytes_total",
			Help: "Total bytes streamed into attachment storage",
		}),
		EvidenceSealed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_evidence_sealed_total",
			Help: "Total number of evidence records sealed, by ingestion method",
		}, []string{"method"}),
		SealReplays: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_seal_replays_total",
			Help: "API_PUSH submissions answered with an existing record",
		}),
		PreconditionFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_precondition_failures_total",
			Help: "Seal attempts refused by a precondition, by reason code",
		}, []string{"reason"}),
		Quarantined: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_drafts_quarantined_total",
			Help: "Drafts moved to quarantine, by reason code",
		}, []string{"reason"}),
		CommandsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_commands_applied_total",
			Help: "Ledger commands applied, by command type",
		}, []string{"command_type"}),
		CommandReplays: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_command_replays_total",
			Help: "Ledger commands answered from the stored result, by command type",
		}, []string{"command_type"}),
		CommandRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evidentia_commands_rejected_total",
			Help: "Ledger commands refused, by error code",
		}, []string{"code"}),
		Supersessions: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_supersessions_total",
			Help: "Total number of evidence records superseded",
		}),
		SealDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "evidentia_seal_duration_seconds",
			Help:    "Time spent sealing a draft, including precondition checks",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StoreRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "evidentia_store_retries_total",
			Help: "Retries of idempotent store operations after transient failures",
		}),
	}
}

func (m *Metrics) ObserveSealDuration(d time.Duration) {
	m.SealDuration.Observe(d.Seconds())
}
