package manager

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/replicad/pkg/events"
	"github.com/cuemby/replicad/pkg/hook"
	"github.com/cuemby/replicad/pkg/log"
	"github.com/cuemby/replicad/pkg/metrics"
	"github.com/cuemby/replicad/pkg/resource"
	"github.com/cuemby/replicad/pkg/storage"
	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/types"
)

// Spawner starts and stops worker processes
type Spawner interface {
	Start(res types.ResourceConfig) (*supervisor.Handle, error)
	Stop(h *supervisor.Handle) error
}

// Config holds configuration for creating a Manager
type Config struct {
	Table      *resource.Table
	Supervisor Spawner
	Hooks      *hook.Runner

	// Store persists applied transitions (optional)
	Store storage.Store

	// Events receives lifecycle events (optional)
	Events *events.Broker

	// RestartDelay is the pause before restarting a crashed worker (default: 1 second)
	RestartDelay time.Duration
}

// Manager is the role state machine. It is the only writer of the
// Role and Worker fields of table entries, and every method must be
// called from the single control loop.
type Manager struct {
	table        *resource.Table
	spawner      Spawner
	hooks        *hook.Runner
	store        storage.Store
	broker       *events.Broker
	restartDelay time.Duration
	logger       zerolog.Logger

	restarts  chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new Manager instance
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("resource table is required")
	}
	if cfg.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	hooks := cfg.Hooks
	if hooks == nil {
		hooks = hook.NewRunner(0)
	}
	restartDelay := cfg.RestartDelay
	if restartDelay <= 0 {
		restartDelay = time.Second
	}

	m := &Manager{
		table:        cfg.Table,
		spawner:      cfg.Supervisor,
		hooks:        hooks,
		store:        cfg.Store,
		broker:       cfg.Events,
		restartDelay: restartDelay,
		logger:       log.WithComponent("manager"),
		restarts:     make(chan string, cfg.Table.Len()),
		done:         make(chan struct{}),
	}

	for _, res := range m.table.All() {
		metrics.SetResourceRole(res.Name, res.Role)
	}
	return m, nil
}

// Table returns the resource table the manager mutates
func (m *Manager) Table() *resource.Table {
	return m.table
}

// Restarts delivers names of resources whose worker is due for a
// restart. The control loop passes them to Restart.
func (m *Manager) Restarts() <-chan string {
	return m.restarts
}

// SetRole moves the named resource to role and returns the role it had
// before. Requesting the current role is a successful no-op. A worker
// start failure is returned as ErrWorkerStartFailed but the new role is
// kept.
func (m *Manager) SetRole(name string, role types.Role) (types.Role, error) {
	if !role.Requestable() {
		return types.RoleUndefined, types.ErrInvalidRole
	}

	res := m.table.Find(name)
	if res == nil {
		return types.RoleUndefined, fmt.Errorf("%w: %s", types.ErrNoSuchResource, name)
	}

	previous := res.Role
	if role == previous {
		return previous, nil
	}

	logger := log.WithResource(name)
	logger.Info().
		Str("from", previous.String()).
		Str("to", role.String()).
		Msg("changing role")

	if res.Worker != nil {
		m.stopWorker(res)
	}

	res.Role = role

	var err error
	if role == types.RolePrimary {
		err = m.startWorker(res)
		if err != nil {
			logger.Error().Err(err).Msg("primary has no worker")
		}
	}

	m.recordTransition(res, previous)
	m.hooks.Run(res.HookPath, "role", name, previous.String(), role.String(), res.Role.String())

	return previous, err
}

// HandleExit processes a reaped worker. Exits of handles that are no
// longer attached to their resource come from deliberate stops and are
// ignored. A temporary failure of a primary's worker schedules a
// restart; any other exit demotes the resource to init.
func (m *Manager) HandleExit(exit supervisor.Exit) {
	res := m.table.Find(exit.Resource)
	if res == nil || res.Worker == nil || res.Worker != exit.Handle {
		return
	}

	logger := log.WithWorker(res.Name, exit.PID)
	res.Worker = nil
	exit.Handle.Channel().Close()

	m.publish(events.EventWorkerExited, res.Name, exit.String(), nil)

	if res.Role == types.RolePrimary && exit.Temporary() {
		logger.Warn().Str("exit", exit.String()).Dur("delay", m.restartDelay).Msg("worker died, restarting")
		m.scheduleRestart(res.Name)
		return
	}

	logger.Error().Str("exit", exit.String()).Msg("worker exited, demoting resource")
	m.demote(res)
}

// Restart starts the worker of a resource that lost it. Requests for
// resources that changed role or regained a worker in the meantime are
// ignored.
func (m *Manager) Restart(name string) {
	res := m.table.Find(name)
	if res == nil || res.Role != types.RolePrimary || res.Worker != nil {
		return
	}

	if err := m.startWorker(res); err != nil {
		logger := log.WithResource(name)
		logger.Error().Err(err).Msg("unable to restart worker, demoting resource")
		m.demote(res)
		return
	}
	m.publish(events.EventWorkerRestarted, name, "", map[string]string{
		"pid": fmt.Sprintf("%d", res.Worker.PID()),
	})
}

// Restore re-applies the last persisted role of every configured
// resource. Records of resources no longer configured are skipped.
func (m *Manager) Restore() error {
	if m.store == nil {
		return nil
	}

	records, err := m.store.ListRoles()
	if err != nil {
		return fmt.Errorf("failed to list persisted roles: %w", err)
	}

	for _, record := range records {
		logger := log.WithResource(record.Resource)
		if m.table.Find(record.Resource) == nil {
			logger.Warn().Msg("persisted role for unknown resource, skipping")
			continue
		}
		if !record.To.Requestable() {
			continue
		}
		if _, err := m.SetRole(record.Resource, record.To); err != nil {
			logger.Error().Err(err).Str("role", record.To.String()).Msg("failed to restore role")
			continue
		}
		logger.Info().Str("role", record.To.String()).Msg("role restored")
	}
	return nil
}

// Shutdown stops every running worker. Roles are left as they are so
// they can be restored on the next start.
func (m *Manager) Shutdown() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	for _, res := range m.table.All() {
		if res.Worker != nil {
			m.stopWorker(res)
		}
	}
}

func (m *Manager) startWorker(res *resource.Resource) error {
	h, err := m.spawner.Start(res.ResourceConfig)
	if err != nil {
		return err
	}
	res.Worker = h
	m.publish(events.EventWorkerStarted, res.Name, "", map[string]string{
		"pid": fmt.Sprintf("%d", h.PID()),
	})
	return nil
}

// stopWorker detaches and stops the worker of res. The handle is
// dropped even if the worker could not be waited for.
func (m *Manager) stopWorker(res *resource.Resource) {
	h := res.Worker
	res.Worker = nil

	if err := m.spawner.Stop(h); err != nil {
		logger := log.WithWorker(res.Name, h.PID())
		logger.Warn().Err(err).Msg("worker stop incomplete")
	}
	m.publish(events.EventWorkerStopped, res.Name, "", map[string]string{
		"pid": fmt.Sprintf("%d", h.PID()),
	})
}

func (m *Manager) demote(res *resource.Resource) {
	previous := res.Role
	res.Role = types.RoleInit
	m.recordTransition(res, previous)
	m.hooks.Run(res.HookPath, "role", res.Name, previous.String(), res.Role.String(), res.Role.String())
}

func (m *Manager) scheduleRestart(name string) {
	time.AfterFunc(m.restartDelay, func() {
		select {
		case m.restarts <- name:
		case <-m.done:
		}
	})
}

// recordTransition updates metrics, the store and subscribers after
// res left previous
func (m *Manager) recordTransition(res *resource.Resource, previous types.Role) {
	metrics.RoleTransitionsTotal.WithLabelValues(previous.String(), res.Role.String()).Inc()
	metrics.SetResourceRole(res.Name, res.Role)

	if m.store != nil {
		record := &types.RoleRecord{
			Resource:  res.Name,
			From:      previous,
			To:        res.Role,
			ChangedAt: time.Now().UTC(),
		}
		if err := m.store.SaveRole(record); err != nil {
			logger := log.WithResource(res.Name)
			logger.Warn().Err(err).Msg("failed to persist role")
		}
	}

	m.publish(events.EventRoleChanged, res.Name, fmt.Sprintf("%s -> %s", previous, res.Role), map[string]string{
		"from": previous.String(),
		"to":   res.Role.String(),
	})
}

func (m *Manager) publish(t events.EventType, name, message string, metadata map[string]string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		Type:     t,
		Resource: name,
		Message:  message,
		Metadata: metadata,
	})
}
