/*
Package supervisor starts, stops and reaps worker processes.

Every Primary resource is served by one worker: the replicad binary
re-executed with the worker subcommand. Start creates a socketpair,
hands one end to the child as descriptor 3 and keeps the other in the
returned Handle. A reaper goroutine per child waits for it and reports
the outcome on Exits:

	┌──────────────┐  Start   ┌──────────────┐
	│  Supervisor  │─────────►│ worker (pid) │
	│              │          └──────┬───────┘
	│   reap() ◄───┼──── wait ───────┘
	│      │       │
	│      ▼       │
	│   Exits() ───┼────► control loop
	└──────────────┘

Stop sends SIGTERM and escalates to SIGKILL after the configured stop
timeout. An exit that follows Stop is still delivered; consumers compare
the Handle against the one they hold and drop stale exits.

An Exit is Temporary when the worker was killed by a signal or exited
with ExitTempFail (75). Temporary exits of a Primary resource are
retried; anything else demotes the resource.
*/
package supervisor
