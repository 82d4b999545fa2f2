package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

// PipelineMetrics records recommendation and catalog measurements.
type PipelineMetrics struct {
	service string

	stageDuration *prometheus.HistogramVec
	analysisTotal *prometheus.CounterVec
	verdictsTotal *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	listingTotal  *prometheus.CounterVec
	enrichTotal   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of recommendation pipeline stages.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"service", "stage"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "analysis_total",
			Help:      "Query analyses by source (model or fallback).",
		},
		[]string{"service", "source"},
	)
	verdictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "verdicts_total",
			Help:      "Candidate verdicts by source (model or fallback).",
		},
		[]string{"service", "source"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Completed recommendation runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	listingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "listing_requests_total",
			Help:      "Store listing reads by surface and status.",
		},
		[]string{"service", "surface", "status"},
	)
	enrichTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "enrichment_total",
			Help:      "Detail enrichment attempts by status.",
		},
		[]string{"service", "status"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "detail_cache_lookups_total",
			Help:      "Detail cache lookups by tier and result.",
		},
		[]string{"service", "tier", "result"},
	)

	registerer.MustRegister(stageDuration, analysisTotal, verdictsTotal, runsTotal, listingTotal, enrichTotal, cacheLookups)

	return &PipelineMetrics{
		service:       service,
		stageDuration: stageDuration,
		analysisTotal: analysisTotal,
		verdictsTotal: verdictsTotal,
		runsTotal:     runsTotal,
		listingTotal:  listingTotal,
		enrichTotal:   enrichTotal,
		cacheLookups:  cacheLookups,
	}
}

func (m *PipelineMetrics) ObserveStage(stage string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(m.service, stage).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) RecordAnalysis(source domain.Source) {
	m.analysisTotal.WithLabelValues(m.service, string(source)).Inc()
}

func (m *PipelineMetrics) RecordVerdict(source domain.Source) {
	m.verdictsTotal.WithLabelValues(m.service, string(source)).Inc()
}

func (m *PipelineMetrics) RecordRecommendRun(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.runsTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *PipelineMetrics) RecordListing(surface domain.ListingSurface, ok bool) {
	m.listingTotal.WithLabelValues(m.service, string(surface), status(ok)).Inc()
}

func (m *PipelineMetrics) RecordEnrichment(ok bool) {
	m.enrichTotal.WithLabelValues(m.service, status(ok)).Inc()
}

// RecordCacheLookup matches the detail cache observer signature.
func (m *PipelineMetrics) RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(m.service, tier, result).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
