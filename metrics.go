package pubfront

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the application counters exported on /metrics next to the
// per-request metrics from echoprometheus.
type Metrics struct {
	PageCache       *prometheus.CounterVec
	RebuildFailures prometheus.Counter
	RebuildLatency  prometheus.Histogram
	Comments        *prometheus.CounterVec
}

// NewMetrics registers the application metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PageCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pubfront_page_cache_requests_total",
			Help: "Page cache lookups by result (hit, stale, miss)",
		}, []string{"result"}),
		RebuildFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "pubfront_page_rebuild_failures_total",
			Help: "Background page rebuilds that failed and kept the stale page",
		}),
		RebuildLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pubfront_page_build_seconds",
			Help:    "Time spent fetching and rendering one page",
			Buckets: prometheus.DefBuckets,
		}),
		Comments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pubfront_comment_submissions_total",
			Help: "Comment submissions by outcome",
		}, []string{"outcome"}),
	}
}
