// Package metrics exposes Prometheus metrics for the resolution path,
// the cache tiers and the sync pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	ResolutionsTotal *prometheus.CounterVec // Resolutions by language
	MissingTotal     prometheus.Counter     // Missing-key resolutions
	CacheHits        *prometheus.CounterVec // Cache hits by tier
	CacheMisses      *prometheus.CounterVec // Cache misses by tier
	RegistrySize     prometheus.Gauge       // Registered translations
	SyncRunsTotal    *prometheus.CounterVec // Sync runs by operation and status
	WebhookRequests  *prometheus.CounterVec // Webhook requests by outcome
	ReloadsTotal     prometheus.Counter     // Namespace reloads
}

// New creates and registers the engine metrics. The registerer parameter
// allows flexible registration (global registry, test registry).
func New(reg prometheus.Registerer) *Metrics {
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openlocale_resolutions_total",
		Help: "Total translation resolutions by language",
	}, []string{"language"})

	missing := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "openlocale_missing_keys_total",
		Help: "Total resolutions that fell through to the missing-key format",
	})

	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openlocale_cache_hits_total",
		Help: "Cache hits by tier",
	}, []string{"tier"})

	cacheMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openlocale_cache_misses_total",
		Help: "Cache misses by tier",
	}, []string{"tier"})

	registrySize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "openlocale_registry_translations",
		Help: "Number of translations currently registered",
	})

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openlocale_sync_runs_total",
		Help: "Sync runs by operation and final status",
	}, []string{"operation", "status"})

	webhookRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openlocale_webhook_requests_total",
		Help: "Webhook requests by outcome",
	}, []string{"outcome"})

	reloads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "openlocale_namespace_reloads_total",
		Help: "Total namespace reloads",
	})

	reg.MustRegister(resolutions, missing, cacheHits, cacheMisses,
		registrySize, syncRuns, webhookRequests, reloads)

	return &Metrics{
		ResolutionsTotal: resolutions,
		MissingTotal:     missing,
		CacheHits:        cacheHits,
		CacheMisses:      cacheMisses,
		RegistrySize:     registrySize,
		SyncRunsTotal:    syncRuns,
		WebhookRequests:  webhookRequests,
		ReloadsTotal:     reloads,
	}
}
