package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the bot.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions  prometheus.Gauge
	TasksTotal      *prometheus.CounterVec
	TaskDuration    prometheus.Histogram
	TaskCostUSD     prometheus.Counter
	SweepsTotal     prometheus.Counter
	SweptSessions   prometheus.Counter
	WorkspaceBytes  *prometheus.GaugeVec
	ToolCallsTotal  *prometheus.CounterVec
	CommandsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers all bot metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monco_active_sessions",
			Help: "Number of live user sessions.",
		}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monco_tasks_total",
			Help: "Agent tasks executed.",
		}, []string{"status"}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monco_task_duration_seconds",
			Help:    "Wall-clock duration of agent tasks.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		TaskCostUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monco_task_cost_usd_total",
			Help: "Cumulative estimated API cost in USD.",
		}),
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monco_sweeps_total",
			Help: "Expiry sweep runs.",
		}),
		SweptSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monco_swept_sessions_total",
			Help: "Sessions removed by the expiry sweep.",
		}),
		WorkspaceBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monco_workspace_bytes",
			Help: "Last measured workspace size per session.",
		}, []string{"session"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monco_tool_calls_total",
			Help: "Tool invocations by name and status.",
		}, []string{"tool", "status"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monco_commands_total",
			Help: "Slash commands handled.",
		}, []string{"command", "status"}),
	}

	reg.MustRegister(
		m.ActiveSessions, m.TasksTotal, m.TaskDuration, m.TaskCostUSD,
		m.SweepsTotal, m.SweptSessions, m.WorkspaceBytes,
		m.ToolCallsTotal, m.CommandsTotal,
	)
	return m
}

// ObserveTask records one completed agent task.
func (m *Metrics) ObserveTask(success bool, duration time.Duration, costUSD float64) {
	status := "ok"
	if !success {
		status = "error"
	}
	m.TasksTotal.WithLabelValues(status).Inc()
	m.TaskDuration.Observe(duration.Seconds())
	if costUSD > 0 {
		m.TaskCostUSD.Add(costUSD)
	}
}

// Handler serves the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics HTTP listener on addr. Blocks until the server fails.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
