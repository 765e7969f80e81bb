package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegtrend_catalog_api_calls_total",
			Help: "Total imagery platform API calls",
		},
		[]string{"operation", "status"},
	)

	CatalogAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vegtrend_catalog_api_latency_seconds",
			Help:    "Imagery platform API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ScenesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vegtrend_scenes_fetched_total",
			Help: "Total clipped scene rasters retrieved",
		},
	)

	ScenesFullyMasked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vegtrend_scenes_fully_masked_total",
			Help: "Scenes with zero valid pixels after masking",
		},
	)
)
