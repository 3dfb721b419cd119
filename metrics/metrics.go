// Package metrics declares the Prometheus collectors for both binaries.
// Registration happens at init through promauto against the default
// registry; mains expose it with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InspectionsSaved counts save attempts by outcome
	// (ok, invalid, error).
	InspectionsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspecao_inspections_saved_total",
		Help: "Inspection save attempts by outcome.",
	}, []string{"status"})

	// EvidenceStored counts evidence blobs written to storage.
	EvidenceStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspecao_evidence_stored_total",
		Help: "Evidence blobs persisted.",
	})

	// OpportunitiesDerived counts opportunity rows produced by derivation,
	// including reprocess runs.
	OpportunitiesDerived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspecao_opportunities_derived_total",
		Help: "Opportunity rows produced by derivation.",
	})

	// SaveDuration observes the full transactional save, evidence uploads
	// included.
	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inspecao_save_duration_seconds",
		Help:    "Duration of transactional inspection saves.",
		Buckets: prometheus.DefBuckets,
	})

	// QueueBacklog tracks the agent's pending submission count.
	QueueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspecao_agent_queue_backlog",
		Help: "Submissions waiting in the local offline queue.",
	})

	// SyncDrains counts drain passes by result (ok, partial, error).
	SyncDrains = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspecao_agent_sync_drains_total",
		Help: "Queue drain passes by result.",
	}, []string{"result"})
)
