/*
Package ipc provides the private control channel between the daemon and
a worker process.

The channel is one end of a Unix socketpair carrying nv messages. The
daemon keeps one end and passes the other to the worker as descriptor
WorkerFD (3):

	daemon                                worker
	┌──────────────┐   socketpair    ┌──────────────┐
	│ Handle       │◄───────────────►│ fd 3         │
	│  .Channel()  │  nv messages    │ FileChannel  │
	└──────────────┘                 └──────────────┘

Requests and replies strictly alternate. After a timeout or any other
I/O failure the position in the stream is unknown: a late reply would
be taken as the answer to the next request. The channel therefore
marks itself broken on the first failure and rejects every later call
with ErrBroken.
*/
package ipc
