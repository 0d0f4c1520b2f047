// Package metrics defines Prometheus metrics for market-comps.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mc"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})
)

// Cache metrics, labeled by logical cache namespace.
var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of cache lookups that found a valid entry.",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of cache lookups that found nothing usable.",
	}, []string{"cache"})

	CacheWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_writes_total",
		Help:      "Total number of cache entries written.",
	}, []string{"cache"})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Total number of entries dropped by write-triggered collection.",
	}, []string{"cache", "reason"})

	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Number of stored entries per cache, as of the last stats run.",
	}, []string{"cache"})
)

// Curation metrics.
var (
	CurationDeletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "curation_deletions_total",
		Help:      "Total number of listings removed by users.",
	}, []string{"kind"})

	CurationRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "curation_records",
		Help:      "Number of items with at least one curated deletion.",
	})
)

// Search provider metrics.
var (
	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Total number of search provider calls by engine and outcome.",
	}, []string{"engine", "outcome"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Duration of search provider calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"engine"})

	ProviderDailyUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_daily_usage",
		Help:      "Current daily search provider call count within the rolling 24-hour window.",
	})

	ProviderDailyLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_daily_limit_hits_total",
		Help:      "Total number of times the daily search provider limit was reached.",
	})

	GatewayFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_fallbacks_total",
		Help:      "Total number of visual searches that fell back to text search.",
	}, []string{"reason"})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Total number of image uploads by outcome.",
	}, []string{"outcome"})
)

// Engine metrics.
var (
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of market data lookups in seconds, by source.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_errors_total",
		Help:      "Total number of market data lookups that ended in the errored state.",
	})

	FetchesDeduplicatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetches_deduplicated_total",
		Help:      "Total number of lookups that joined a fetch already in flight.",
	})

	FetchesSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetches_superseded_total",
		Help:      "Total number of fetch results discarded because the item changed.",
	})

	AveragePriceUSD = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "average_price_usd",
		Help:      "Distribution of computed average prices.",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 10), // 5 .. 2560
	})
)

// Enrichment metrics.
var (
	EnrichmentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_requests_total",
		Help:      "Total number of generated-text requests by tool and outcome.",
	}, []string{"tool", "outcome"})

	EnrichmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "enrichment_duration_seconds",
		Help:      "Duration of LLM generation calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})

	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_total",
		Help:      "Total number of LLM tokens consumed.",
	}, []string{"backend", "direction"})
)

// System metrics.
var (
	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 when the liveness check last passed.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 when the readiness check last passed.",
	})
)
