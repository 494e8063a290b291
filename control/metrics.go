// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for connection and response accounting.
// Counters live in a private Prometheus registry so several servers (and
// tests) can coexist in one process.

package control

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-fs/api"
)

var _ api.Metrics = (*MetricsRegistry)(nil)

// MetricsRegistry records server lifecycle events.
type MetricsRegistry struct {
	reg       *prometheus.Registry
	accepted  prometheus.Counter
	active    prometheus.Gauge
	responses *prometheus.CounterVec
	dropped   prometheus.Counter
	sent      prometheus.Counter
	namespace string
	startedAt time.Time
}

// NewMetricsRegistry creates a registry whose metric names carry namespace.
func NewMetricsRegistry(namespace string) *MetricsRegistry {
	mr := &MetricsRegistry{
		reg: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the event loop.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently registered.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses sent, by status code.",
		}, []string{"status"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_dropped_total",
			Help:      "Connections closed without a response.",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes accepted by the kernel for sending.",
		}),
		namespace: namespace,
		startedAt: time.Now(),
	}
	mr.reg.MustRegister(mr.accepted, mr.active, mr.responses, mr.dropped, mr.sent)
	return mr
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors.
func (mr *MetricsRegistry) RegisterRuntimeCollectors() {
	mr.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func (mr *MetricsRegistry) ConnAccepted() {
	mr.accepted.Inc()
	mr.active.Inc()
}

func (mr *MetricsRegistry) ConnClosed() { mr.active.Dec() }

func (mr *MetricsRegistry) Response(status int) {
	mr.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (mr *MetricsRegistry) Dropped() { mr.dropped.Inc() }

func (mr *MetricsRegistry) BytesSent(n int) {
	if n > 0 {
		mr.sent.Add(float64(n))
	}
}

// Gatherer exposes the underlying registry.
func (mr *MetricsRegistry) Gatherer() prometheus.Gatherer { return mr.reg }

// Handler serves the registry in the Prometheus exposition format.
func (mr *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(mr.Gatherer(), promhttp.HandlerOpts{Registry: mr.reg})
}

// GetSnapshot returns the latest metrics keyed by metric name, with the
// status label appended for per-status counters.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	out := make(map[string]any)
	families, err := mr.reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

// Summary converts the counters into the API DTO.
func (mr *MetricsRegistry) Summary() api.APIMetrics {
	m := api.APIMetrics{
		Responses: make(map[int]uint64),
		StartedAt: mr.startedAt,
	}
	families, err := mr.reg.Gather()
	if err != nil {
		return m
	}
	for _, mf := range families {
		name := strings.TrimPrefix(mf.GetName(), mr.namespace+"_")
		for _, metric := range mf.GetMetric() {
			switch name {
			case "connections_accepted_total":
				m.Accepted = uint64(metric.GetCounter().GetValue())
			case "connections_active":
				m.Active = int(metric.GetGauge().GetValue())
			case "connections_dropped_total":
				m.Dropped = uint64(metric.GetCounter().GetValue())
			case "bytes_sent_total":
				m.OutboundTraffic = uint64(metric.GetCounter().GetValue())
			case "responses_total":
				for _, lp := range metric.GetLabel() {
					if code, err := strconv.Atoi(lp.GetValue()); err == nil && lp.GetName() == "status" {
						m.Responses[code] = uint64(metric.GetCounter().GetValue())
					}
				}
			}
		}
	}
	return m
}
