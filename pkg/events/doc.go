/*
Package events provides an in-memory broker for resource lifecycle
events.

The role state machine publishes an Event for every role change and
worker transition:

	role.changed       a resource moved between roles
	worker.started     a worker process was spawned
	worker.stopped     a worker was stopped by a role change or shutdown
	worker.exited      a worker exited on its own
	worker.restarted   a temporary exit was retried

Publish never blocks. Events go through a buffered channel to a
broadcast loop which fans them out to subscriber channels; a subscriber
whose buffer is full misses the event. The daemon runs one subscriber
that writes events to the log at debug level.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	for ev := range sub {
		fmt.Println(ev.Type, ev.Resource)
	}
*/
package events
