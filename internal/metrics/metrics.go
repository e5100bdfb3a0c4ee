// Package metrics exposes controller counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// Metrics owns a private registry. All methods are safe on a nil receiver so
// components can run without instrumentation in tests.
type Metrics struct {
	Registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	busy            prometheus.Counter
	stale           prometheus.Counter
	polls           *prometheus.CounterVec
	connected       prometheus.Gauge
	cpu             prometheus.Gauge
	memory          prometheus.Gauge
}

func New(hub *events.Hub) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekran_commands_total",
			Help: "Mutating commands by outcome (ok or error kind).",
		}, []string{"command", "outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekran_command_duration_seconds",
			Help:    "Time from lock acquisition to device answer.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ekran_busy_rejections_total",
			Help: "Commands rejected because another command held the lock.",
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ekran_stale_results_total",
			Help: "Device answers and poll results discarded as stale.",
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekran_polls_total",
			Help: "Status polls by result (ok, failed, skipped).",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ekran_device_connected",
			Help: "1 when the last status poll succeeded.",
		}),
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ekran_device_cpu_usage_percent",
			Help: "Device CPU usage reported by /system_info.",
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ekran_device_memory_percent",
			Help: "Device memory usage reported by /system_info.",
		}),
	}

	m.Registry.MustRegister(
		m.commands, m.commandDuration, m.busy, m.stale,
		m.polls, m.connected, m.cpu, m.memory,
	)
	if hub != nil {
		m.Registry.MustRegister(&hubCollector{hub: hub})
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CommandFinished(command, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	m.commandDuration.WithLabelValues(command).Observe(took.Seconds())
}

func (m *Metrics) BusyRejected() {
	if m == nil {
		return
	}
	m.busy.Inc()
}

func (m *Metrics) StaleDiscarded() {
	if m == nil {
		return
	}
	m.stale.Inc()
}

func (m *Metrics) Poll(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
	switch result {
	case "ok":
		m.connected.Set(1)
	case "failed":
		m.connected.Set(0)
	}
}

func (m *Metrics) SystemInfo(info model.SystemInfo) {
	if m == nil {
		return
	}
	m.cpu.Set(info.CPUUsage)
	m.memory.Set(info.MemoryPercent)
}

// hubCollector reads the event hub counters at scrape time.
type hubCollector struct {
	hub *events.Hub
}

var (
	eventsPublishedDesc = prometheus.NewDesc(
		"ekran_events_published_total", "Events published on the hub.", nil, nil,
	)
	eventsDroppedDesc = prometheus.NewDesc(
		"ekran_events_dropped_total", "Event deliveries dropped because a subscriber was full.", nil, nil,
	)
)

func (c *hubCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- eventsPublishedDesc
	ch <- eventsDroppedDesc
}

func (c *hubCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.hub.Stats()
	ch <- prometheus.MustNewConstMetric(eventsPublishedDesc, prometheus.CounterValue, float64(st.Published))
	ch <- prometheus.MustNewConstMetric(eventsDroppedDesc, prometheus.CounterValue, float64(st.Dropped))
}
