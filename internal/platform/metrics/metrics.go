package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa los contadores del pipeline de triage.
// Una sola instancia por proceso (promauto registra en el default registry).
type Metrics struct {
	SubmissionsTotal    *prometheus.CounterVec
	DiscoverySearches   prometheus.Counter
	DiscoverySuperseded prometheus.Counter
	EnrichmentFailures  prometheus.Counter
	EnrichmentLatency   prometheus.Histogram
	GeoFallbacksTotal   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_submissions_total",
			Help: "Diagnosis submissions by outcome (ok, rejected, error)",
		}, []string{"outcome"}),
		DiscoverySearches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "triage_discovery_searches_total",
			Help: "Provider discovery searches started",
		}),
		DiscoverySuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "triage_discovery_superseded_total",
			Help: "In-flight searches discarded because a newer position arrived",
		}),
		EnrichmentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "triage_enrichment_failures_total",
			Help: "Per-candidate detail fetches that degraded to placeholders",
		}),
		EnrichmentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_enrichment_duration_seconds",
			Help:    "Duration of a full enrichment batch (all-complete join)",
			Buckets: prometheus.DefBuckets,
		}),
		GeoFallbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "triage_geo_fallbacks_total",
			Help: "Position resolutions that fell back to the fixed coordinate",
		}),
	}
}

func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncDiscoverySearch() {
	if m == nil {
		return
	}
	m.DiscoverySearches.Inc()
}

func (m *Metrics) IncDiscoverySuperseded() {
	if m == nil {
		return
	}
	m.DiscoverySuperseded.Inc()
}

func (m *Metrics) IncEnrichmentFailure() {
	if m == nil {
		return
	}
	m.EnrichmentFailures.Inc()
}

func (m *Metrics) ObserveEnrichmentBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.EnrichmentLatency.Observe(d.Seconds())
}

func (m *Metrics) IncGeoFallback() {
	if m == nil {
		return
	}
	m.GeoFallbacksTotal.Inc()
}
