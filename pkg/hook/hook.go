package hook

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/metrics"
)

// Result represents the outcome of one hook execution
type Result struct {
	Path     string
	Args     []string
	Err      error
	Output   string
	Duration time.Duration
}

// Runner executes external hook scripts. Hooks report events to the
// operator; their failures are logged and never returned to clients.
type Runner struct {
	// Timeout is the execution timeout of one hook (default: 30 seconds)
	Timeout time.Duration

	logger  zerolog.Logger
	pending sync.WaitGroup
}

// NewRunner creates a hook runner
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		Timeout: timeout,
		logger:  log.WithComponent("hook"),
	}
}

// Exec runs path with args and waits for it
func (r *Runner) Exec(ctx context.Context, path string, args ...string) Result {
	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, path, args...)
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("hook timed out after %s", r.Timeout)
	}

	out := strings.TrimSpace(output.String())
	if len(out) > 256 {
		out = out[:256] + "..."
	}

	return Result{
		Path:     path,
		Args:     args,
		Err:      err,
		Output:   out,
		Duration: time.Since(start),
	}
}

// Run executes the hook in the background and logs its outcome. An
// empty path is a no-op.
func (r *Runner) Run(path string, args ...string) {
	if path == "" {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		result := r.Exec(context.Background(), path, args...)
		if result.Err != nil {
			metrics.HookRunsTotal.WithLabelValues("failed").Inc()
			r.logger.Warn().
				Err(result.Err).
				Str("hook", path).
				Strs("args", args).
				Str("output", result.Output).
				Msg("hook failed")
			return
		}
		metrics.HookRunsTotal.WithLabelValues("ok").Inc()
		r.logger.Debug().
			Str("hook", path).
			Strs("args", args).
			Dur("duration", result.Duration).
			Msg("hook executed")
	}()
}

// Wait blocks until every hook started by Run has finished
func (r *Runner) Wait() {
	r.pending.Wait()
}
