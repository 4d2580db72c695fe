// Package metrics defines the prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the preview engine's collectors. A nil *Metrics is valid
// and records nothing, so components never have to check.
type Metrics struct {
	registry *prometheus.Registry

	compositions     prometheus.Counter
	commits          *prometheus.CounterVec
	staleCompletions prometheus.Counter
	activeSurfaces   prometheus.Gauge
	activeSessions   prometheus.Gauge
	aiRequests       *prometheus.CounterVec
	blobsOutstanding prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		compositions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livepen",
			Name:      "compositions_total",
			Help:      "Documents composed from buffer snapshots.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepen",
			Name:      "renders_committed_total",
			Help:      "Render generations whose load completion was honoured.",
		}, []string{"mode"}),
		staleCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livepen",
			Name:      "stale_completions_total",
			Help:      "Load completions discarded because a newer generation was issued.",
		}),
		activeSurfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepen",
			Name:      "surfaces_active",
			Help:      "Render surfaces currently owning an execution context.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepen",
			Name:      "sessions_active",
			Help:      "Open editing sessions.",
		}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepen",
			Name:      "ai_requests_total",
			Help:      "AI collaborator requests by outcome.",
		}, []string{"outcome"}),
		blobsOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepen",
			Name:      "blobs_outstanding",
			Help:      "Open-in-new-context documents not yet revoked.",
		}),
	}
	m.registry.MustRegister(
		m.compositions, m.commits, m.staleCompletions, m.activeSurfaces,
		m.activeSessions, m.aiRequests, m.blobsOutstanding,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Composed() {
	if m != nil {
		m.compositions.Inc()
	}
}

func (m *Metrics) Committed(mode string) {
	if m != nil {
		m.commits.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) StaleCompletion() {
	if m != nil {
		m.staleCompletions.Inc()
	}
}

func (m *Metrics) SurfaceOpened() {
	if m != nil {
		m.activeSurfaces.Inc()
	}
}

func (m *Metrics) SurfaceClosed() {
	if m != nil {
		m.activeSurfaces.Dec()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// AIRequest records one collaborator call; outcome is "ok" or "error".
func (m *Metrics) AIRequest(outcome string) {
	if m != nil {
		m.aiRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) BlobCreated() {
	if m != nil {
		m.blobsOutstanding.Inc()
	}
}

func (m *Metrics) BlobRevoked() {
	if m != nil {
		m.blobsOutstanding.Dec()
	}
}
