package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/cuemby/replicad/pkg/ipc"
	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/metrics"
	"github.com/cuemby/replicad/pkg/types"
)

// ExitTempFail is the exit status (EX_TEMPFAIL) a worker uses to ask
// for a restart after a transient failure.
const ExitTempFail = 75

// EnvResource names the resource a worker process serves
const EnvResource = "REPLICAD_RESOURCE"

// Exit describes a reaped worker process
type Exit struct {
	Resource string
	Handle   *Handle
	PID      int
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
	Err      error
}

// Temporary reports whether the worker died in a way that warrants a
// restart: killed by a signal, or exited with ExitTempFail.
func (e Exit) Temporary() bool {
	return e.Signaled || e.ExitCode == ExitTempFail
}

func (e Exit) String() string {
	if e.Signaled {
		return fmt.Sprintf("killed by signal %s", e.Signal)
	}
	return fmt.Sprintf("exited with status %d", e.ExitCode)
}

// Handle is a running worker process plus the daemon's end of its
// private control channel.
type Handle struct {
	resource string
	process  *os.Process
	channel  *ipc.Channel
	started  time.Time

	done chan struct{}
	exit Exit
}

// PID returns the worker's process id
func (h *Handle) PID() int {
	return h.process.Pid
}

// Resource returns the name of the resource the worker serves
func (h *Handle) Resource() string {
	return h.resource
}

// Channel returns the daemon's end of the control channel
func (h *Handle) Channel() *ipc.Channel {
	return h.channel
}

// Done is closed once the process has been reaped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has been reaped
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Config holds supervisor configuration
type Config struct {
	// Binary is the worker executable
	Binary string

	// Args builds the worker's arguments for a resource
	Args func(res types.ResourceConfig) []string

	// Env is appended to the daemon's environment for every worker
	Env []string

	// StopTimeout bounds the wait for a terminated worker (default: 30 seconds)
	StopTimeout time.Duration

	// Stderr receives the worker's log output (default: os.Stderr)
	Stderr *os.File
}

// Supervisor starts, stops and reaps worker processes. Start and Stop
// are called from the control loop only; reaping happens in background
// goroutines that report through Exits.
type Supervisor struct {
	binary      string
	args        func(res types.ResourceConfig) []string
	env         []string
	stopTimeout time.Duration
	stderr      *os.File
	logger      zerolog.Logger

	exits     chan Exit
	closeCh   chan struct{}
	closeOnce sync.Once
	running   sync.WaitGroup
}

// New creates a supervisor
func New(cfg Config) *Supervisor {
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Supervisor{
		binary:      cfg.Binary,
		args:        cfg.Args,
		env:         cfg.Env,
		stopTimeout: stopTimeout,
		stderr:      stderr,
		logger:      log.WithComponent("supervisor"),
		exits:       make(chan Exit, 16),
		closeCh:     make(chan struct{}),
	}
}

// Exits delivers every reaped worker, expected or not
func (s *Supervisor) Exits() <-chan Exit {
	return s.exits
}

// Start spawns the worker process for res. The child finds its end of
// the control channel on descriptor ipc.WorkerFD.
func (s *Supervisor) Start(res types.ResourceConfig) (*Handle, error) {
	channel, childEnd, err := ipc.Pair(res.Name)
	if err != nil {
		metrics.WorkerStartsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrWorkerStartFailed, err)
	}

	var args []string
	if s.args != nil {
		args = s.args(res)
	}

	cmd := exec.Command(s.binary, args...)
	cmd.ExtraFiles = []*os.File{childEnd}
	cmd.Stdout = s.stderr
	cmd.Stderr = s.stderr
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Env = append(cmd.Env, EnvResource+"="+res.Name)

	if err := cmd.Start(); err != nil {
		childEnd.Close()
		channel.Close()
		metrics.WorkerStartsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrWorkerStartFailed, err)
	}
	childEnd.Close()

	h := &Handle{
		resource: res.Name,
		process:  cmd.Process,
		channel:  channel,
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	metrics.WorkerStartsTotal.WithLabelValues("ok").Inc()
	metrics.WorkersRunning.Inc()
	s.logger.Info().
		Str("resource", res.Name).
		Int("pid", h.PID()).
		Msg("worker started")

	s.running.Add(1)
	go s.reap(h, cmd)

	return h, nil
}

// reap waits for the process and publishes its Exit
func (s *Supervisor) reap(h *Handle, cmd *exec.Cmd) {
	defer s.running.Done()

	waitErr := cmd.Wait()
	exit := Exit{
		Resource: h.resource,
		Handle:   h,
		PID:      h.PID(),
		ExitCode: -1,
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		exit.Err = waitErr
	}
	if state := cmd.ProcessState; state != nil {
		exit.ExitCode = state.ExitCode()
		if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			exit.Signaled = true
			exit.Signal = status.Signal()
		}
	}

	h.exit = exit
	close(h.done)

	reason := "exited"
	if exit.Signaled {
		reason = "signaled"
	}
	metrics.WorkerExitsTotal.WithLabelValues(reason).Inc()
	metrics.WorkersRunning.Dec()

	select {
	case s.exits <- exit:
	case <-s.closeCh:
	}
}

// Stop terminates the worker and waits for it to be reaped. The wait is
// bounded by the stop timeout; on expiry the worker is killed and
// ErrWaitFailed is returned. The handle must be discarded either way.
func (s *Supervisor) Stop(h *Handle) error {
	logger := log.WithWorker(h.resource, h.PID())
	defer h.channel.Close()

	if err := h.process.Signal(unix.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn().Err(err).Msg("unable to signal worker")
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		logger.Info().Str("exit", h.exit.String()).Msg("worker stopped")
		return nil
	case <-timer.C:
	}

	if err := h.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn().Err(err).Msg("unable to kill worker")
	}
	return fmt.Errorf("%w: pid %d did not exit within %s", types.ErrWaitFailed, h.PID(), s.stopTimeout)
}

// ExitStatus returns the exit of a reaped handle. It blocks until the
// process is reaped.
func (h *Handle) ExitStatus() Exit {
	<-h.done
	return h.exit
}

// Close stops delivering exits and waits for pending reapers. Running
// workers are not touched; stop them first.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	s.running.Wait()
}
