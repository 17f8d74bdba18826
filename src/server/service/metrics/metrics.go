// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torsentry_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "torsentry_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "torsentry_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torsentry_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "torsentry_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "torsentry_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// Tor process metrics
	TorBootstrapPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "torsentry_tor_bootstrap_percent",
			Help: "Current tor bootstrap percentage, 0-100",
		},
	)

	TorRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "torsentry_tor_restarts_total",
			Help: "Total number of times the managed tor process was restarted",
		},
	)

	TorCircuitEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torsentry_tor_circuit_events_total",
			Help: "Total number of CIRC events received from the tor control port, by status",
		},
		[]string{"status"},
	)

	TorSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torsentry_tor_signals_total",
			Help: "Total number of signals sent to the managed tor process",
		},
		[]string{"signal"},
	)

	// Scheduler metrics
	ScheduledTaskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torsentry_scheduled_task_runs_total",
			Help: "Total number of scheduled task runs, by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	// Cluster metrics
	ClusterNodesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "torsentry_cluster_nodes_active",
			Help: "Number of active nodes known to this instance",
		},
	)
)
