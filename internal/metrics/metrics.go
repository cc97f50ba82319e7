// Package metrics exposes Prometheus counters for the sync core.
package metrics

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the sync metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Mutations      *prometheus.CounterVec
	Rollbacks      *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
	RealtimeEvents *prometheus.CounterVec
	Deferred       *prometheus.CounterVec
	Subscriptions  prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Optimistic mutations by entity type and outcome",
			},
			[]string{"type", "outcome"},
		),
		Rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Pending edits discarded after a failed remote write",
			},
			[]string{"type"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "Initial loads and refetches by entity type and result",
			},
			[]string{"type", "result"},
		),
		RealtimeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_events_total",
				Help:      "Change events merged into the cache",
			},
			[]string{"type", "event"},
		),
		Deferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_deferred_total",
				Help:      "Change events queued behind a pending local edit",
			},
			[]string{"type"},
		),
		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realtime_subscriptions",
				Help:      "Open change-stream subscriptions",
			},
		),
	}

	registry.MustRegister(
		c.Mutations,
		c.Rollbacks,
		c.Refreshes,
		c.RealtimeEvents,
		c.Deferred,
		c.Subscriptions,
	)
	return c
}

// CacheSizer is the part of the cache the entries gauge reads.
type CacheSizer interface {
	Len(t models.Type) (confirmed, pending int)
}

// WatchCache registers gauges reporting cache entries per type and layer.
func (c *Collector) WatchCache(namespace string, cache CacheSizer) {
	if c == nil {
		return
	}
	for _, t := range models.Types {
		t := t
		c.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "cache_entries",
				Help:        "Entities held in the cache",
				ConstLabels: prometheus.Labels{"type": string(t), "layer": "confirmed"},
			}, func() float64 {
				n, _ := cache.Len(t)
				return float64(n)
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "cache_entries",
				Help:        "Entities held in the cache",
				ConstLabels: prometheus.Labels{"type": string(t), "layer": "pending"},
			}, func() float64 {
				_, n := cache.Len(t)
				return float64(n)
			}),
		)
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Mutation(t models.Type, outcome string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(string(t), outcome).Inc()
}

func (c *Collector) Rollback(t models.Type) {
	if c == nil {
		return
	}
	c.Rollbacks.WithLabelValues(string(t)).Inc()
}

func (c *Collector) Refresh(t models.Type, result string) {
	if c == nil {
		return
	}
	c.Refreshes.WithLabelValues(string(t), result).Inc()
}

func (c *Collector) RealtimeEvent(t models.Type, event string) {
	if c == nil {
		return
	}
	c.RealtimeEvents.WithLabelValues(string(t), event).Inc()
}

func (c *Collector) DeferredEvent(t models.Type) {
	if c == nil {
		return
	}
	c.Deferred.WithLabelValues(string(t)).Inc()
}

func (c *Collector) SubscriptionOpened() {
	if c == nil {
		return
	}
	c.Subscriptions.Inc()
}

func (c *Collector) SubscriptionClosed() {
	if c == nil {
		return
	}
	c.Subscriptions.Dec()
}
