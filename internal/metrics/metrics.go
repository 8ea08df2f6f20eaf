// Package metrics provides Prometheus instrumentation for weather queries,
// refreshes and geolocation lookups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal     *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	refreshesTotal   *prometheus.CounterVec
	staleTotal       *prometheus.CounterVec
	geolocationTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skycast_queries_total",
				Help: "Total number of model queries by kind and outcome.",
			},
			[]string{"kind", "outcome"}, // outcome: success, not_found, transport
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skycast_query_duration_seconds",
				Help:    "Time taken by model queries.",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"kind"},
		),
		refreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skycast_refreshes_total",
				Help: "Total number of snapshot refreshes by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),
		staleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skycast_stale_completions_total",
				Help: "Completions discarded because a newer request superseded them.",
			},
			[]string{"kind"},
		),
		geolocationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skycast_geolocation_total",
				Help: "Geolocation lookups by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.queriesTotal, m.queryDuration, m.refreshesTotal, m.staleTotal, m.geolocationTotal,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveQuery records one model query.
func (m *Metrics) ObserveQuery(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(kind, outcome).Inc()
	m.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRefresh records one refresh attempt.
func (m *Metrics) RecordRefresh(trigger, outcome string) {
	if m == nil {
		return
	}
	m.refreshesTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordStale records a discarded completion.
func (m *Metrics) RecordStale(kind string) {
	if m == nil {
		return
	}
	m.staleTotal.WithLabelValues(kind).Inc()
}

// RecordGeolocation records one geolocation lookup.
func (m *Metrics) RecordGeolocation(trigger, outcome string) {
	if m == nil {
		return
	}
	m.geolocationTotal.WithLabelValues(trigger, outcome).Inc()
}
