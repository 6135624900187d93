// Package diag exposes runtime counters for the client core and an
// optional HTTP listener serving them.
package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the client's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	alerts       *prometheus.CounterVec
	flushes      *prometheus.CounterVec
	replays      *prometheus.CounterVec
	pendingOps   prometheus.Gauge
	failedOps    prometheus.Gauge
	connected    prometheus.Gauge
	probes       *prometheus.CounterVec
	deliveries   prometheus.Counter
	pendingSound prometheus.Gauge
}

// NewMetrics creates and registers the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runalert",
			Name:      "alerts_total",
			Help:      "Alert requests by priority and outcome.",
		}, []string{"priority", "outcome"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runalert",
			Name:      "queue_flushes_total",
			Help:      "Offline queue flush attempts by result.",
		}, []string{"result"}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runalert",
			Name:      "queue_replays_total",
			Help:      "Replayed operations by kind and result.",
		}, []string{"kind", "result"}),
		pendingOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runalert",
			Name:      "queue_pending",
			Help:      "Operations waiting for connectivity.",
		}),
		failedOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runalert",
			Name:      "queue_failed",
			Help:      "Operations given up on.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runalert",
			Name:      "connected",
			Help:      "1 when the remote store is reachable.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runalert",
			Name:      "probes_total",
			Help:      "Connectivity probes by result.",
		}, []string{"result"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runalert",
			Name:      "snapshot_deliveries_total",
			Help:      "Message subscription deliveries processed.",
		}),
		pendingSound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runalert",
			Name:      "sounds_pending",
			Help:      "Blocked sounds waiting for user interaction.",
		}),
	}

	reg.MustRegister(
		m.alerts, m.flushes, m.replays, m.pendingOps, m.failedOps,
		m.connected, m.probes, m.deliveries, m.pendingSound,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Alert(priority, outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(priority, outcome).Inc()
}

func (m *Metrics) Flush(result string) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(result).Inc()
}

func (m *Metrics) Replay(kind, result string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) QueueDepth(pending, failed int) {
	if m == nil {
		return
	}
	m.pendingOps.Set(float64(pending))
	m.failedOps.Set(float64(failed))
}

func (m *Metrics) Probe(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.probes.WithLabelValues(result).Inc()
	if ok {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) Delivery() {
	if m == nil {
		return
	}
	m.deliveries.Inc()
}

func (m *Metrics) PendingSounds(n int) {
	if m == nil {
		return
	}
	m.pendingSound.Set(float64(n))
}
