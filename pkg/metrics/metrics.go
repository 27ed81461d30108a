package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuemby/replicad/pkg/types"
)

var (
	// Control socket metrics
	ControlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicad_control_requests_total",
			Help: "Total number of control requests by command and result",
		},
		[]string{"command", "result"},
	)

	ControlRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replicad_control_request_duration_seconds",
			Help:    "Control request handling time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Role state machine metrics
	RoleTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicad_role_transitions_total",
			Help: "Total number of applied role transitions by source and target role",
		},
		[]string{"from", "to"},
	)

	ResourceRole = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replicad_resource_role",
			Help: "Current role of each resource (1 for the active role label)",
		},
		[]string{"resource", "role"},
	)

	// Worker supervisor metrics
	WorkerStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicad_worker_starts_total",
			Help: "Total number of worker spawn attempts by result",
		},
		[]string{"result"},
	)

	WorkerExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicad_worker_exits_total",
			Help: "Total number of reaped worker processes by reason",
		},
		[]string{"reason"},
	)

	WorkersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "replicad_workers_running",
			Help: "Number of live worker processes",
		},
	)

	// Status relay metrics
	StatusQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replicad_status_query_duration_seconds",
			Help:    "Round trip time of status queries to workers in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StatusQueryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "replicad_status_query_failures_total",
			Help: "Total number of status queries that found the worker unreachable",
		},
	)

	HookRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicad_hook_runs_total",
			Help: "Total number of hook executions by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ControlRequestsTotal)
	prometheus.MustRegister(ControlRequestDuration)
	prometheus.MustRegister(RoleTransitionsTotal)
	prometheus.MustRegister(ResourceRole)
	prometheus.MustRegister(WorkerStartsTotal)
	prometheus.MustRegister(WorkerExitsTotal)
	prometheus.MustRegister(WorkersRunning)
	prometheus.MustRegister(StatusQueryDuration)
	prometheus.MustRegister(StatusQueryFailures)
	prometheus.MustRegister(HookRunsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetResourceRole marks role as the active role of resource
func SetResourceRole(resource string, role types.Role) {
	for _, r := range []types.Role{types.RoleUndefined, types.RoleInit, types.RolePrimary, types.RoleSecondary} {
		value := 0.0
		if r == role {
			value = 1
		}
		ResourceRole.WithLabelValues(resource, r.String()).Set(value)
	}
}
