// Package metrics provides Prometheus metrics for blog-mirror.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	// CacheLookupsTotal counts cache reads by result.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blogmirror",
			Name:      "cache_lookups_total",
			Help:      "Total number of feed cache lookups",
		},
		[]string{"result"},
	)

	// CacheWritesTotal counts cache writes by status.
	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blogmirror",
			Name:      "cache_writes_total",
			Help:      "Total number of feed cache writes",
		},
		[]string{"status"},
	)

	// UpstreamFetchTotal counts upstream feed fetches by status.
	UpstreamFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blogmirror",
			Name:      "upstream_fetch_total",
			Help:      "Total number of upstream feed fetches",
		},
		[]string{"status"},
	)

	// UpstreamFetchDuration measures upstream fetch duration.
	UpstreamFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blogmirror",
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of upstream feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RecordsParsed tracks the record count of the last parsed feed.
	RecordsParsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blogmirror",
			Name:      "records_parsed",
			Help:      "Number of records in the most recently parsed feed",
		},
	)
)

// RecordCacheLookup records a cache read.
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheWrite records a cache write.
func RecordCacheWrite(err error) {
	CacheWritesTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordUpstreamFetch records an upstream fetch and its duration.
func RecordUpstreamFetch(err error, seconds float64) {
	UpstreamFetchTotal.WithLabelValues(statusLabel(err)).Inc()
	UpstreamFetchDuration.Observe(seconds)
}

// RecordParsed records the size of the latest parse.
func RecordParsed(count int) {
	RecordsParsed.Set(float64(count))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
