// Package metrics holds the process-wide Prometheus collectors. Registered
// on the default registry; the server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xtreamcat_cache_hits_total",
		Help: "Snapshot cache hits.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xtreamcat_cache_misses_total",
		Help: "Snapshot cache misses (expired or absent).",
	})
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xtreamcat_cache_evictions_total",
		Help: "Snapshot cache entries evicted under capacity pressure.",
	})
	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xtreamcat_catalog_load_seconds",
		Help:    "Full catalog load duration, including fallback attempts.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	LoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xtreamcat_catalog_load_failures_total",
		Help: "Catalog loads where primary and fallback both failed.",
	})
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xtreamcat_upstream_requests_total",
		Help: "Requests issued to the IPTV backend, by API action and outcome.",
	}, []string{"action", "outcome"})
)
