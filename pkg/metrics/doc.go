/*
Package metrics exposes Prometheus metrics and component health for the
daemon.

Metrics are registered at init and served by Handler:

	replicad_control_requests_total{command,result}
	replicad_control_request_duration_seconds{command}
	replicad_role_transitions_total{from,to}
	replicad_resource_role{resource,role}
	replicad_worker_starts_total{result}
	replicad_worker_exits_total{reason}
	replicad_workers_running
	replicad_status_query_duration_seconds
	replicad_status_query_failures_total
	replicad_hook_runs_total{result}

Component health is tracked separately. Subsystems register with
RegisterComponent and report with UpdateComponent; the health, ready
and live handlers render the aggregate as JSON. Readiness requires the
store, supervisor and control components to be healthy.
*/
package metrics
