// Package metrics provides Prometheus metrics for the game tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/codyseavey/game-tracker/internal/models"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gametracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gametracker_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Store API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gametracker_upstream_requests_total",
			Help: "Requests made to the store API",
		},
		[]string{"endpoint", "outcome"}, // endpoint: "storesearch", "appdetails", "html_search"; outcome: "ok", "status", "network", "decode"
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gametracker_upstream_latency_seconds",
			Help:    "Store API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Detail Fetcher Metrics
	DetailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gametracker_detail_cache_hits_total",
			Help: "Detail lookups served from the in-memory cache",
		},
	)

	DetailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gametracker_detail_cache_misses_total",
			Help: "Detail lookups that required an upstream request",
		},
	)

	DetailBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gametracker_detail_batches_total",
			Help: "Detail batches issued by outcome",
		},
		[]string{"outcome"}, // "ok", "failed", "skipped"
	)

	// Search Metrics
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gametracker_searches_total",
			Help: "Searches by the strategy that produced the results",
		},
		[]string{"strategy"}, // "primary", "fallback", "empty"
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gametracker_search_duration_seconds",
			Help:    "End-to-end search time including detail resolution",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gametracker_search_results",
			Help:    "Number of games returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	NormalizerDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gametracker_normalizer_dropped_total",
			Help: "Store records dropped during normalization",
		},
		[]string{"reason"}, // "unsuccessful", "type"
	)

	// Library Metrics
	LibraryGamesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gametracker_library_games_total",
			Help: "Total number of games in the library",
		},
	)

	LibraryGamesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gametracker_library_games_by_status",
			Help: "Number of library games by status",
		},
		[]string{"status"},
	)
)

// UpdateLibraryMetrics refreshes the library gauges from the database
func UpdateLibraryMetrics(db *gorm.DB) {
	if db == nil {
		return
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Game{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return
	}

	var total int64
	for _, s := range models.AllGameStatuses() {
		LibraryGamesByStatus.WithLabelValues(string(s)).Set(0)
	}
	for _, r := range rows {
		LibraryGamesByStatus.WithLabelValues(r.Status).Set(float64(r.Count))
		total += r.Count
	}
	LibraryGamesTotal.Set(float64(total))
}
