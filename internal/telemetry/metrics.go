package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ingestRuns counts finished ingestion runs by retailer and status.
	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_runs_total",
		Help: "Total number of ingestion runs by retailer and final status",
	}, []string{"retailer", "status"})

	// ingestRunDuration tracks wall time per run.
	ingestRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_run_duration_seconds",
		Help:    "Wall time of ingestion runs by retailer",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"retailer"})

	// ingestItems counts per-item outcomes inside runs.
	ingestItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_items_total",
		Help: "Total number of items processed by retailer and outcome",
	}, []string{"retailer", "outcome"}) // outcome: new, updated, failed

	// matchDecisions counts matching-engine decisions by tier.
	matchDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_match_decisions_total",
		Help: "Total number of matching decisions by tier",
	}, []string{"tier"})

	// fixtureFallbacks counts runs that served fixture data instead of live.
	fixtureFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_fixture_fallbacks_total",
		Help: "Total number of runs that fell back to fixture data",
	}, []string{"retailer"})
)

// IngestMetrics provides methods to record pipeline metrics.
type IngestMetrics struct{}

// NewIngestMetrics creates a new pipeline metrics recorder.
func NewIngestMetrics() *IngestMetrics {
	return &IngestMetrics{}
}

// RecordRun records a finished run.
func (m *IngestMetrics) RecordRun(retailer, status string, duration time.Duration) {
	ingestRuns.WithLabelValues(retailer, status).Inc()
	ingestRunDuration.WithLabelValues(retailer).Observe(duration.Seconds())
}

// RecordItem records one item outcome.
func (m *IngestMetrics) RecordItem(retailer, outcome string) {
	ingestItems.WithLabelValues(retailer, outcome).Inc()
}

// RecordMatchTier records one matching decision.
func (m *IngestMetrics) RecordMatchTier(tier string) {
	matchDecisions.WithLabelValues(tier).Inc()
}

// RecordFixtureFallback records a run that served fixture data.
func (m *IngestMetrics) RecordFixtureFallback(retailer string) {
	fixtureFallbacks.WithLabelValues(retailer).Inc()
}
