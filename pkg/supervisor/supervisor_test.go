package supervisor

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/replicad/pkg/types"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func shellSupervisor(t *testing.T, script string, stopTimeout time.Duration) *Supervisor {
	sh := lookPath(t, "sh")
	s := New(Config{
		Binary:      sh,
		Args:        func(types.ResourceConfig) []string { return []string{"-c", script} },
		StopTimeout: stopTimeout,
	})
	t.Cleanup(s.Close)
	return s
}

func waitExit(t *testing.T, s *Supervisor) Exit {
	t.Helper()
	select {
	case exit := <-s.Exits():
		return exit
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for worker exit")
		return Exit{}
	}
}

func TestStartAndStop(t *testing.T) {
	s := shellSupervisor(t, "exec sleep 60", 5*time.Second)

	h, err := s.Start(types.ResourceConfig{Name: "data0"})
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)
	assert.Equal(t, "data0", h.Resource())
	assert.NotNil(t, h.Channel())
	assert.False(t, h.Exited())

	require.NoError(t, s.Stop(h))
	assert.True(t, h.Exited())

	exit := waitExit(t, s)
	assert.Same(t, h, exit.Handle)
	assert.Equal(t, "data0", exit.Resource)
	assert.True(t, exit.Signaled)
	assert.Equal(t, syscall.SIGTERM, exit.Signal)
}

func TestStopTimeoutKillsAndReportsWaitFailed(t *testing.T) {
	// Ignored signals stay ignored across exec, so sleep ignores SIGTERM
	s := shellSupervisor(t, "trap '' TERM; exec sleep 60", 200*time.Millisecond)

	h, err := s.Start(types.ResourceConfig{Name: "data0"})
	require.NoError(t, err)

	// Give the shell time to install the trap before signalling
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	err = s.Stop(h)
	require.ErrorIs(t, err, types.ErrWaitFailed)
	assert.Less(t, time.Since(start), 5*time.Second)

	exit := waitExit(t, s)
	assert.True(t, exit.Signaled)
	assert.Equal(t, syscall.SIGKILL, exit.Signal)
}

func TestUnexpectedExitIsReported(t *testing.T) {
	s := shellSupervisor(t, "exit 75", time.Second)

	h, err := s.Start(types.ResourceConfig{Name: "data1"})
	require.NoError(t, err)

	exit := waitExit(t, s)
	assert.Same(t, h, exit.Handle)
	assert.Equal(t, ExitTempFail, exit.ExitCode)
	assert.False(t, exit.Signaled)
	assert.True(t, exit.Temporary())
	assert.Equal(t, exit, h.ExitStatus())
}

func TestPermanentExitIsNotTemporary(t *testing.T) {
	s := shellSupervisor(t, "exit 1", time.Second)

	_, err := s.Start(types.ResourceConfig{Name: "data1"})
	require.NoError(t, err)

	exit := waitExit(t, s)
	assert.Equal(t, 1, exit.ExitCode)
	assert.False(t, exit.Temporary())
	assert.Equal(t, "exited with status 1", exit.String())
}

func TestWorkerInheritsControlChannel(t *testing.T) {
	// fd 3 must be a socket in the child
	s := shellSupervisor(t, "test -S /proc/self/fd/3 || test -S /dev/fd/3", time.Second)

	_, err := s.Start(types.ResourceConfig{Name: "data0"})
	require.NoError(t, err)

	exit := waitExit(t, s)
	assert.Equal(t, 0, exit.ExitCode)
}

func TestStartFailure(t *testing.T) {
	s := New(Config{Binary: "/nonexistent/replicad-worker"})
	t.Cleanup(s.Close)

	h, err := s.Start(types.ResourceConfig{Name: "data0"})
	assert.Nil(t, h)
	assert.ErrorIs(t, err, types.ErrWorkerStartFailed)
}
