// Package metrics registers the engine's prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SearchesTotal counts completed search requests by outcome
	// ("ok", "invalid", "error").
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperscout",
			Name:      "searches_total",
			Help:      "Total number of search requests by outcome",
		},
		[]string{"outcome"},
	)

	// SourceRequestsTotal counts upstream catalog calls by source and
	// status ("ok", "error").
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperscout",
			Name:      "source_requests_total",
			Help:      "Total number of source client searches by status",
		},
		[]string{"source", "status"},
	)

	// SourceRequestDuration observes upstream catalog latency per source.
	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paperscout",
			Name:      "source_request_duration_seconds",
			Help:      "Source client search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// CacheRequestsTotal counts cache lookups by cache name
	// ("source", "openaccess") and result ("hit", "miss").
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperscout",
			Name:      "cache_requests_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	// OALookupsTotal counts open-access resolver calls by status
	// ("ok", "error").
	OALookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperscout",
			Name:      "oa_lookups_total",
			Help:      "Total number of open-access lookups by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(OALookupsTotal)
}
