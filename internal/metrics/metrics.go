// Package metrics exposes the engine's load metrics both as a plain
// snapshot for the query API and as Prometheus collectors on an isolated
// registry, so embedding hosts can mount the handler wherever they like.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the result of the most recent load pass.
type Snapshot struct {
	// Discovered counts mods that survived manifest validation.
	Discovered int
	// Resolved counts mods placed into the load order.
	Resolved int
	// Loaded counts mods that reached Initialized.
	Loaded int
	// Failed counts mods whose last attempt failed.
	Failed int
	// Duration is the wall time of the load pass.
	Duration time.Duration
}

// Metrics owns the Prometheus collectors for one engine instance.
type Metrics struct {
	registry *prometheus.Registry

	discovered prometheus.Gauge
	resolved   prometheus.Gauge
	loaded     prometheus.Gauge
	failed     prometheus.Gauge
	duration   prometheus.Histogram
	reloads    prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadstone_mods_discovered",
			Help: "Number of mods that passed manifest validation in the last scan.",
		}),
		resolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadstone_mods_resolved",
			Help: "Number of mods placed into the resolved load order.",
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadstone_mods_loaded",
			Help: "Number of mods currently initialized.",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadstone_mods_failed",
			Help: "Number of mods whose last load attempt failed.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "loadstone_load_duration_seconds",
			Help:    "Wall time of full load passes.",
			Buckets: prometheus.DefBuckets,
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadstone_mod_reloads_total",
			Help: "Number of single-mod reloads performed.",
		}),
	}
	reg.MustRegister(m.discovered, m.resolved, m.loaded, m.failed, m.duration, m.reloads)
	return m
}

// Observe records the outcome of a load pass.
func (m *Metrics) Observe(snap Snapshot) {
	m.discovered.Set(float64(snap.Discovered))
	m.resolved.Set(float64(snap.Resolved))
	m.loaded.Set(float64(snap.Loaded))
	m.failed.Set(float64(snap.Failed))
	m.duration.Observe(snap.Duration.Seconds())
}

// ObserveReload counts one single-mod reload.
func (m *Metrics) ObserveReload() {
	m.reloads.Inc()
}

// Handler serves the engine's collectors in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
