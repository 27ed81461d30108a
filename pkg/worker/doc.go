/*
Package worker implements the control loop that runs inside a worker
process.

The worker reads requests from its private channel (descriptor 3) and
answers each in order. Only the status command is implemented; every
other command is answered with an Unimplemented error so the daemon
never waits on a request the worker cannot serve.

	┌───────────── worker process ──────────────┐
	│                                           │
	│  Worker.Run ◄──── fd 3 ────► daemon       │
	│     │                                     │
	│     ▼                                     │
	│  StatusProvider (State)                   │
	│     ▲                                     │
	│     │ SetConnected                        │
	│  RemoteMonitor ──── TCP probe ──► peer    │
	└───────────────────────────────────────────┘

Run returns nil when its context is cancelled and ErrChannelLost when
the daemon end goes away. The worker subcommand maps the latter to exit
status 75 so the daemon treats it as a temporary failure.
*/
package worker
