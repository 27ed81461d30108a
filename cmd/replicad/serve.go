package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/replicad/pkg/api"
	"github.com/cuemby/replicad/pkg/config"
	"github.com/cuemby/replicad/pkg/events"
	"github.com/cuemby/replicad/pkg/hook"
	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/manager"
	"github.com/cuemby/replicad/pkg/metrics"
	"github.com/cuemby/replicad/pkg/relay"
	"github.com/cuemby/replicad/pkg/storage"
	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the replication daemon",
	Long: `Run the replication daemon in the foreground.

The daemon loads the configuration, listens on the control socket and
starts a worker process for every resource that becomes primary.
SIGINT or SIGTERM stops all workers and exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, err := filepath.Abs(global.configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Process:    "daemon",
	})
	logger := log.WithComponent("daemon")
	metrics.SetVersion(Version)

	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ControlSocket), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	table, err := cfg.Table()
	if err != nil {
		return err
	}

	store, err := storage.NewBoltStore(cfg.StateDir)
	if err != nil {
		metrics.RegisterComponent("store", false, err.Error())
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent("store", true, "open")

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate worker binary: %w", err)
	}
	sup := supervisor.New(supervisor.Config{
		Binary: binary,
		Args: func(res types.ResourceConfig) []string {
			return []string{"worker", "--config", configPath, "--resource", res.Name}
		},
		StopTimeout: cfg.StopTimeout,
	})
	defer sup.Close()
	metrics.RegisterComponent("supervisor", true, "ready")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker.Subscribe())

	hooks := hook.NewRunner(cfg.HookTimeout)
	defer hooks.Wait()

	mgr, err := manager.NewManager(&manager.Config{
		Table:        table,
		Supervisor:   sup,
		Hooks:        hooks,
		Store:        store,
		Events:       broker,
		RestartDelay: cfg.RestartDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Shutdown()

	if cfg.RestoreRoles {
		if err := mgr.Restore(); err != nil {
			logger.Error().Err(err).Msg("role restore failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := api.NewHealthServer().Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server failed")
			}
		}()
	}

	server := api.NewServer(api.ServerConfig{
		SocketPath: cfg.ControlSocket,
		Dispatcher: api.NewDispatcher(table, mgr, relay.New(cfg.WorkerTimeout)),
		Controller: mgr,
		Exits:      sup.Exits(),
	})

	logger.Info().
		Str("version", Version).
		Int("resources", table.Len()).
		Msg("replicad started")

	if err := server.Serve(ctx); err != nil {
		return err
	}

	logger.Info().Msg("shutting down")
	return nil
}

// logEvents writes lifecycle events to the log
func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for event := range sub {
		logger.Debug().
			Str("id", event.ID).
			Str("type", string(event.Type)).
			Str("resource", event.Resource).
			Str("message", event.Message).
			Interface("metadata", event.Metadata).
			Msg("event")
	}
}
