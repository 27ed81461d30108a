/*
Package api serves the replicad control socket.

Server runs the daemon's single control loop. An accept goroutine hands
connections to the loop, which handles one request at a time alongside
worker exits from the supervisor and restart timers from the manager:

	           ┌──────────────── control loop ────────────────┐
	conns ────►│ Dispatcher.Handle ──► RoleSetter / relay      │
	exits ────►│ Controller.HandleExit                        │
	restarts ─►│ Controller.Restart                           │
	ctx.Done ─►│ return                                       │
	           └──────────────────────────────────────────────┘

Requests are nv messages with a "cmd" attribute and resource0..N names,
or the single name "all". Replies repeat the resources in order with
per-resource "errorN" codes; a request-wide problem is reported as a
lone "error" attribute. A request that cannot be decoded closes the
connection without a reply.

HealthServer exposes /health, /ready, /live and /metrics over HTTP when
a metrics address is configured.
*/
package api
