// Package metrics provides the in-process Prometheus collectors for the
// sync engine. Nothing in this package starts an HTTP server: exposition is
// the embedding application's concern, not this module's.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors used by the sync engine.
type Metrics struct {
	EntitiesProcessedTotal *prometheus.CounterVec
	EntityActionDuration   *prometheus.HistogramVec
	WorkerPoolInFlight     prometheus.Gauge
	WorkerPoolCapacity     prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec

	DatabaseQueriesTotal    *prometheus.CounterVec
	DatabaseQueryDuration   *prometheus.HistogramVec
	DatabaseConnectionsOpen prometheus.Gauge

	TokenRefreshTotal *prometheus.CounterVec

	HostCPUPercent    prometheus.Gauge
	HostMemoryPercent prometheus.Gauge

	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
// Passing a nil registerer skips registration entirely (used in tests that
// construct multiple instances in one process).
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntitiesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_entities_processed_total",
				Help: "Total number of entities processed by action taken",
			},
			[]string{"sync_id", "action"},
		),
		EntityActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syncengine_entity_action_duration_seconds",
				Help:    "Time spent applying one entity's action to its destinations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"sync_id", "action"},
		),
		WorkerPoolInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncengine_worker_pool_in_flight",
				Help: "Current number of entities being processed concurrently",
			},
		),
		WorkerPoolCapacity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncengine_worker_pool_capacity",
				Help: "Configured MAX_WORKERS for the running orchestrator",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_errors_total",
				Help: "Total number of errors by component and kind",
			},
			[]string{"component", "kind"},
		),

		DatabaseQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "status"},
		),
		DatabaseQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syncengine_database_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		DatabaseConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncengine_database_connections_open",
				Help: "Current number of open database connections",
			},
		),

		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_token_refresh_total",
				Help: "Total number of OAuth token refresh attempts by outcome",
			},
			[]string{"short_name", "outcome"},
		),

		HostCPUPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncengine_host_cpu_percent",
				Help: "Most recently sampled host CPU utilization percentage",
			},
		),
		HostMemoryPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncengine_host_memory_percent",
				Help: "Most recently sampled host memory utilization percentage",
			},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncengine_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "syncengine_info",
				Help: "Static service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.EntitiesProcessedTotal,
			m.EntityActionDuration,
			m.WorkerPoolInFlight,
			m.WorkerPoolCapacity,
			m.ErrorsTotal,
			m.DatabaseQueriesTotal,
			m.DatabaseQueryDuration,
			m.DatabaseConnectionsOpen,
			m.TokenRefreshTotal,
			m.HostCPUPercent,
			m.HostMemoryPercent,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environment()).Set(1)

	return m
}

// RecordEntityAction records one entity's action outcome and latency.
func (m *Metrics) RecordEntityAction(syncID, action string, duration time.Duration) {
	m.EntitiesProcessedTotal.WithLabelValues(syncID, action).Inc()
	m.EntityActionDuration.WithLabelValues(syncID, action).Observe(duration.Seconds())
}

// RecordError records an error against a component and kind.
func (m *Metrics) RecordError(component, kind string) {
	m.ErrorsTotal.WithLabelValues(component, kind).Inc()
}

// RecordDatabaseQuery records a database query outcome and latency.
func (m *Metrics) RecordDatabaseQuery(operation, status string, duration time.Duration) {
	m.DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDatabaseConnections sets the current open-connection gauge.
func (m *Metrics) SetDatabaseConnections(count int) {
	m.DatabaseConnectionsOpen.Set(float64(count))
}

// RecordTokenRefresh records a token refresh attempt outcome.
func (m *Metrics) RecordTokenRefresh(shortName, outcome string) {
	m.TokenRefreshTotal.WithLabelValues(shortName, outcome).Inc()
}

// SetHostUtilization records the most recent host resource sample.
func (m *Metrics) SetHostUtilization(cpuPercent, memPercent float64) {
	m.HostCPUPercent.Set(cpuPercent)
	m.HostMemoryPercent.Set(memPercent)
}

// SetWorkerPool records the orchestrator's configured capacity and current
// in-flight count.
func (m *Metrics) SetWorkerPool(capacity, inFlight int) {
	m.WorkerPoolCapacity.Set(float64(capacity))
	m.WorkerPoolInFlight.Set(float64(inFlight))
}

// UpdateUptime updates the uptime gauge relative to startTime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

func environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

var (
	global   *Metrics
	globalMu sync.Mutex
)

// Init initializes (once) and returns the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		global = New(serviceName)
	}
	return global
}

// Global returns the global metrics instance, initializing it if necessary.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		global = New("syncengine")
	}
	return global
}
