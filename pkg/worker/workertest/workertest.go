// Package workertest lets a test binary act as a worker process, so
// packages above the supervisor can be tested against real children.
//
// A test package calls Main from its TestMain and builds its supervisor
// from Config. The resource's Provider field selects the child's
// behavior: ModeServe (default), ModeExit or ModeTempFail.
package workertest

import (
	"context"
	"os"
	"os/signal"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cuemby/replicad/pkg/ipc"
	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/types"
	"github.com/cuemby/replicad/pkg/worker"
)

const envHelper = "REPLICAD_TEST_WORKER"

// Child behaviors
const (
	ModeServe    = "serve"
	ModeExit     = "exit"
	ModeTempFail = "tempfail"
)

// Values reported by a serving child
const (
	Dirty      = 7
	ExtentSize = 4096
	KeepDirty  = 16
)

// Main runs the worker when the binary was started as a child and the
// tests otherwise
func Main(m *testing.M) {
	if os.Getenv(envHelper) != "1" {
		os.Exit(m.Run())
	}
	mode := ModeServe
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	os.Exit(run(mode))
}

// Config returns a supervisor configuration that starts this binary as
// a worker
func Config(stopTimeout time.Duration) supervisor.Config {
	return supervisor.Config{
		Binary: os.Args[0],
		Args: func(res types.ResourceConfig) []string {
			if res.Provider == "" {
				return []string{ModeServe}
			}
			return []string{res.Provider}
		},
		Env:         []string{envHelper + "=1"},
		StopTimeout: stopTimeout,
	}
}

func run(mode string) int {
	switch mode {
	case ModeExit:
		return 1
	case ModeTempFail:
		return supervisor.ExitTempFail
	}

	channel, err := ipc.FileChannel(ipc.WorkerFD)
	if err != nil {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM)
	defer stop()

	state := worker.NewState(types.ResourceConfig{ExtentSize: ExtentSize, KeepDirty: KeepDirty})
	state.MarkDirty(Dirty)
	state.SetConnected(true)

	if err := worker.New(os.Getenv(supervisor.EnvResource), channel, state).Run(ctx); err != nil {
		return supervisor.ExitTempFail
	}
	return 0
}
