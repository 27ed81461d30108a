package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/replicad/pkg/config"
	"github.com/cuemby/replicad/pkg/ipc"
	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve one primary resource (started by the daemon)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().String("resource", "", "resource to serve (default: $"+supervisor.EnvResource+")")
}

func runWorker(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("resource")
	if name == "" {
		name = os.Getenv(supervisor.EnvResource)
	}
	if name == "" {
		return fmt.Errorf("no resource given")
	}

	cfg, err := config.Load(global.configPath)
	if err != nil {
		return err
	}
	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Process:    "worker",
	})

	res, ok := cfg.Find(name)
	if !ok {
		return fmt.Errorf("resource %s is not configured", name)
	}

	channel, err := ipc.FileChannel(ipc.WorkerFD)
	if err != nil {
		return fmt.Errorf("no control channel: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := worker.NewState(res)
	if res.RemoteAddress != "" {
		go worker.NewRemoteMonitor(res.RemoteAddress, state).Run(ctx)
	}

	logger := log.WithWorker(name, os.Getpid())
	logger.Info().Msg("worker serving")

	if err := worker.New(name, channel, state).Run(ctx); err != nil {
		if errors.Is(err, worker.ErrChannelLost) {
			return &exitError{code: supervisor.ExitTempFail, err: err}
		}
		return err
	}
	logger.Info().Msg("worker stopped")
	return nil
}
