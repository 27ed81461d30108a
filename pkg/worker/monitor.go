package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/health"
	"github.com/cuemby/replicad/pkg/log"
)

// RemoteMonitor probes the secondary's replication endpoint and keeps
// the state's connected flag current
type RemoteMonitor struct {
	checker health.Checker
	config  health.Config
	status  health.Status
	state   *State
	logger  zerolog.Logger
}

// NewRemoteMonitor creates a monitor for address updating state
func NewRemoteMonitor(address string, state *State) *RemoteMonitor {
	cfg := health.DefaultConfig()
	return &RemoteMonitor{
		checker: health.NewTCPChecker(address).WithTimeout(cfg.Timeout),
		config:  cfg,
		state:   state,
		logger:  log.WithComponent("remote-monitor").With().Str("remote", address).Logger(),
	}
}

// Run probes until ctx is cancelled
func (m *RemoteMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	// Run initial probe immediately
	m.probe(ctx)

	for {
		select {
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *RemoteMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	result := m.checker.Check(probeCtx)
	if m.status.Update(result, m.config) {
		if m.status.Healthy {
			m.logger.Info().Msg("remote node reachable")
		} else {
			m.logger.Warn().Str("reason", result.Message).Msg("remote node unreachable")
		}
	}
	m.state.SetConnected(m.status.Healthy)
}
