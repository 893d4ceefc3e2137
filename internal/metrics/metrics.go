package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors shared by the fetch and refresh pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	APIRequests      *prometheus.CounterVec
	RateLimitRetries prometheus.Counter
	InsightFailures  prometheus.Counter
	RefreshRuns      *prometheus.CounterVec
	PostsWritten     *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "threadpulse_api_requests_total",
			Help: "Threads API requests by endpoint kind and outcome.",
		}, []string{"kind", "status"}),
		RateLimitRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "threadpulse_rate_limit_retries_total",
			Help: "Requests retried after a 429 response.",
		}),
		InsightFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "threadpulse_insight_failures_total",
			Help: "Per-post insight fetches that fell back to zero metrics.",
		}),
		RefreshRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "threadpulse_refresh_runs_total",
			Help: "Incremental refresh runs by outcome.",
		}, []string{"status"}),
		PostsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "threadpulse_posts_written_total",
			Help: "Post rows written by refresh, split into appended and updated.",
		}, []string{"op"}),
	}
}

// IncAPIRequest counts one Threads API request
func (m *Metrics) IncAPIRequest(kind, status string) {
	if m == nil || m.APIRequests == nil {
		return
	}
	m.APIRequests.WithLabelValues(kind, status).Inc()
}

// IncRateLimitRetry counts one retry after a 429
func (m *Metrics) IncRateLimitRetry() {
	if m == nil || m.RateLimitRetries == nil {
		return
	}
	m.RateLimitRetries.Inc()
}

// IncInsightFailure counts one insight that fell back to zero metrics
func (m *Metrics) IncInsightFailure() {
	if m == nil || m.InsightFailures == nil {
		return
	}
	m.InsightFailures.Inc()
}

// IncRefresh counts one refresh run with its outcome
func (m *Metrics) IncRefresh(status string) {
	if m == nil || m.RefreshRuns == nil {
		return
	}
	m.RefreshRuns.WithLabelValues(status).Inc()
}

// AddPostsWritten adds n rows written by op (append or update)
func (m *Metrics) AddPostsWritten(op string, n int) {
	if m == nil || m.PostsWritten == nil || n == 0 {
		return
	}
	m.PostsWritten.WithLabelValues(op).Add(float64(n))
}
