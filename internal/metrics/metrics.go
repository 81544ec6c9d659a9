package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pipeline's Prometheus metrics
type Collector struct {
	fetchDuration  *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	extractionRuns prometheus.Counter
	rowsMerged     prometheus.Counter
	unresolvedGaps prometheus.Counter
	defectsFound   *prometheus.CounterVec
	repairsApplied *prometheus.CounterVec
}

// NewCollector registers the pipeline metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests pass their own
// registry to avoid double registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptodata_fetch_duration_seconds",
			Help:    "Provider fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodata_fetch_errors_total",
			Help: "Provider fetch failures by error code",
		}, []string{"provider", "code"}),
		extractionRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "cryptodata_extraction_runs_total",
			Help: "Completed extraction pipeline runs",
		}),
		rowsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "cryptodata_rows_merged_total",
			Help: "Rows in merged canonical tables",
		}),
		unresolvedGaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "cryptodata_unresolved_gaps_total",
			Help: "Request slices no adapter could supply",
		}),
		defectsFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodata_defects_detected_total",
			Help: "Quality defects by kind",
		}, []string{"kind"}),
		repairsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodata_repairs_applied_total",
			Help: "Repair actions by action taken",
		}, []string{"action"}),
	}
}

// ObserveFetch records one provider fetch
func (c *Collector) ObserveFetch(provider string, d time.Duration) {
	c.fetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// FetchError counts a provider failure
func (c *Collector) FetchError(provider, code string) {
	c.fetchErrors.WithLabelValues(provider, code).Inc()
}

// ExtractionRun counts a completed pipeline run
func (c *Collector) ExtractionRun(rows, unresolved int) {
	c.extractionRuns.Inc()
	c.rowsMerged.Add(float64(rows))
	c.unresolvedGaps.Add(float64(unresolved))
}

// Defect counts a detected quality defect
func (c *Collector) Defect(kind string) {
	c.defectsFound.WithLabelValues(kind).Inc()
}

// Repair counts an applied repair action
func (c *Collector) Repair(action string) {
	c.repairsApplied.WithLabelValues(action).Inc()
}
