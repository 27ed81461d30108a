/*
Package manager implements the resource role state machine.

Each resource is in one of the roles Init, Primary or Secondary. A
resource has a worker process exactly while it is Primary:

	           SetRole(primary)
	 ┌──────┐ ───────────────► ┌─────────┐
	 │ init │                  │ primary │──► worker running
	 │  or  │ ◄─────────────── │         │
	 │ sec. │  SetRole(other)  └────┬────┘
	 └──────┘   or worker exit      │ temporary exit
	     ▲                          ▼
	     │      restart failed  ┌─────────┐
	     └───────────────────── │ restart │ after RestartDelay
	                            └─────────┘

Setting the current role again is a no-op. A change to Primary starts
the worker; if that fails the role is still recorded and the start
error is returned. Every completed change is counted, persisted when a
Store is configured, published on the event broker and handed to the
resource's hook script.

Manager is not safe for concurrent use. The control loop in package
api owns it and serializes requests, worker exits and restarts.
*/
package manager
