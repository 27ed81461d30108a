package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cuemby/replicad/pkg/nv"
)

// WorkerFD is the descriptor number under which a worker process finds
// its end of the private control channel (first entry of ExtraFiles).
const WorkerFD = 3

// ErrBroken is returned by every call on a channel that already failed
var ErrBroken = errors.New("control channel broken")

// Channel is one end of a private, message-oriented control channel.
// Requests and replies strictly alternate, so after any I/O failure the
// stream position is unknown and the channel refuses further use.
type Channel struct {
	mu     sync.Mutex
	conn   net.Conn
	dec    *nv.Decoder
	broken error
}

// NewChannel wraps a connected stream socket
func NewChannel(conn net.Conn) *Channel {
	return &Channel{conn: conn, dec: nv.NewDecoder(conn)}
}

// FileChannel builds a channel from an inherited descriptor
func FileChannel(fd uintptr) (*Channel, error) {
	f := os.NewFile(fd, "replicad-control")
	if f == nil {
		return nil, fmt.Errorf("invalid control descriptor %d", fd)
	}
	return FromFile(f)
}

// FromFile builds a channel from a socket file and closes f; the
// channel keeps its own duplicate of the descriptor.
func FromFile(f *os.File) (*Channel, error) {
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("%s is not a socket: %w", f.Name(), err)
	}
	return NewChannel(conn), nil
}

// Pair creates a connected channel for the daemon and the descriptor
// to hand to the child. Both ends are close-on-exec; os/exec clears the
// flag on ExtraFiles in the child only.
func Pair(name string) (*Channel, *os.File, error) {
	syscall.ForkLock.RLock()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, nil, fmt.Errorf("creating socketpair: %w", err)
	}

	parent := os.NewFile(uintptr(fds[0]), name+"-daemon")
	child := os.NewFile(uintptr(fds[1]), name+"-worker")

	conn, err := net.FileConn(parent)
	parent.Close()
	if err != nil {
		child.Close()
		return nil, nil, fmt.Errorf("wrapping socketpair: %w", err)
	}
	return NewChannel(conn), child, nil
}

// Send writes one message. A zero timeout waits forever.
func (c *Channel) Send(msg *nv.Message, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(msg, timeout)
}

// Receive reads one message. A zero timeout waits forever.
func (c *Channel) Receive(timeout time.Duration) (*nv.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receive(timeout)
}

// Call sends req and waits for the reply, both within timeout
func (c *Channel) Call(req *nv.Message, timeout time.Duration) (*nv.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.sendDeadline(req, deadline); err != nil {
		return nil, err
	}
	return c.receiveDeadline(deadline)
}

func (c *Channel) send(msg *nv.Message, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	return c.sendDeadline(msg, deadline)
}

func (c *Channel) receive(timeout time.Duration) (*nv.Message, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	return c.receiveDeadline(deadline)
}

func (c *Channel) sendDeadline(msg *nv.Message, deadline time.Time) error {
	if c.broken != nil {
		return fmt.Errorf("%w: %v", ErrBroken, c.broken)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.fail(err)
	}
	if err := nv.Write(c.conn, msg); err != nil {
		// An unencodable message never reached the socket
		if msg.Err() != nil {
			return err
		}
		return c.fail(err)
	}
	return nil
}

func (c *Channel) receiveDeadline(deadline time.Time) (*nv.Message, error) {
	if c.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroken, c.broken)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, c.fail(err)
	}
	msg, err := c.dec.Decode()
	if err != nil {
		return nil, c.fail(err)
	}
	return msg, nil
}

func (c *Channel) fail(err error) error {
	c.broken = err
	return err
}

// Broken reports whether the channel failed earlier
func (c *Channel) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken != nil
}

// Close closes the underlying socket. Pending calls fail.
func (c *Channel) Close() error {
	return c.conn.Close()
}
