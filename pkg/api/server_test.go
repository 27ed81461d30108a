package api

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/replicad/pkg/client"
	"github.com/cuemby/replicad/pkg/hook"
	"github.com/cuemby/replicad/pkg/manager"
	"github.com/cuemby/replicad/pkg/relay"
	"github.com/cuemby/replicad/pkg/resource"
	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/types"
	"github.com/cuemby/replicad/pkg/worker/workertest"
)

func TestMain(m *testing.M) {
	workertest.Main(m)
}

type daemon struct {
	client  *client.Client
	sup     *supervisor.Supervisor
	spawner *recordingSpawner
	path    string

	// exits feeds the control loop; tests decide which exits it sees
	exits chan supervisor.Exit
}

func startDaemon(t *testing.T, configs ...types.ResourceConfig) *daemon {
	t.Helper()

	table, err := resource.NewTable(configs)
	require.NoError(t, err)

	sup := supervisor.New(workertest.Config(5 * time.Second))
	spawner := &recordingSpawner{Supervisor: sup, handles: make(map[string]*supervisor.Handle)}
	hooks := hook.NewRunner(5 * time.Second)
	mgr, err := manager.NewManager(&manager.Config{
		Table:        table,
		Supervisor:   spawner,
		Hooks:        hooks,
		RestartDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	d := &daemon{
		sup:     sup,
		spawner: spawner,
		path:    filepath.Join(t.TempDir(), "ctl.sock"),
		exits:   make(chan supervisor.Exit, 16),
	}
	d.client = client.NewClient(d.path).WithTimeout(10 * time.Second)

	server := NewServer(ServerConfig{
		SocketPath: d.path,
		Dispatcher: NewDispatcher(table, mgr, relay.New(2*time.Second)),
		Controller: mgr,
		Exits:      d.exits,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		mgr.Shutdown()
		hooks.Wait()
		sup.Close()
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(d.path)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return d
}

func (d *daemon) setRole(t *testing.T, role types.Role, names ...string) []client.RoleResult {
	t.Helper()
	results, err := d.client.SetRole(context.Background(), role, names...)
	require.NoError(t, err)
	return results
}

func (d *daemon) status(t *testing.T, names ...string) []client.StatusResult {
	t.Helper()
	results, err := d.client.Status(context.Background(), names...)
	require.NoError(t, err)
	return results
}

func TestServer_SecondaryToPrimary(t *testing.T) {
	d := startDaemon(t, types.ResourceConfig{Name: "data0"})
	d.setRole(t, types.RoleSecondary, "data0")

	results := d.setRole(t, types.RolePrimary, "data0")
	require.Len(t, results, 1)
	assert.Equal(t, client.RoleResult{Resource: "data0", PreviousRole: "secondary"}, results[0])

	status := d.status(t, "data0")
	require.Len(t, status, 1)
	assert.Equal(t, "primary", status[0].Role)
	require.NotNil(t, status[0].Report)
	assert.Equal(t, types.StatusComplete, status[0].Report.Status)
}

func TestServer_InvalidRoleLeavesTableUnchanged(t *testing.T) {
	d := startDaemon(t, types.ResourceConfig{Name: "data0"})
	d.setRole(t, types.RoleSecondary, "data0")

	results, err := d.client.SetRole(context.Background(), types.Role(7), "data0")
	assert.Equal(t, types.ErrInvalidRole, err)
	assert.Empty(t, results)

	status := d.status(t, "data0")
	assert.Equal(t, "secondary", status[0].Role)
}

func TestServer_StatusAll(t *testing.T) {
	d := startDaemon(t, types.ResourceConfig{Name: "data0"}, types.ResourceConfig{Name: "data1", ExtentSize: 2 << 20, KeepDirty: 64})
	d.setRole(t, types.RolePrimary, "data0")
	d.setRole(t, types.RoleSecondary, "data1")

	status := d.status(t, "all")
	require.Len(t, status, 2)

	assert.Equal(t, "data0", status[0].Resource)
	require.NotNil(t, status[0].Report)
	assert.Equal(t, uint64(workertest.Dirty), status[0].Report.Dirty)
	assert.Equal(t, uint32(workertest.KeepDirty), status[0].Report.KeepDirty)

	assert.Equal(t, "data1", status[1].Resource)
	require.NotNil(t, status[1].Report)
	assert.Equal(t, types.StatusReport{Status: types.StatusDegraded, ExtentSize: 2 << 20}, *status[1].Report)
}

func TestServer_StatusGhost(t *testing.T) {
	d := startDaemon(t, types.ResourceConfig{Name: "data0"})

	status := d.status(t, "ghost")
	require.Len(t, status, 1)
	assert.Equal(t, "ghost", status[0].Resource)
	assert.Equal(t, types.ErrNoSuchResource, status[0].Err)
	assert.Nil(t, status[0].Report)
}

func TestServer_KilledWorker(t *testing.T) {
	d := startDaemon(t, types.ResourceConfig{Name: "data0"}, types.ResourceConfig{Name: "data1"})
	d.setRole(t, types.RolePrimary, "data0", "data1")

	status := d.status(t, "all")
	require.Len(t, status, 2)
	require.NotNil(t, status[0].Report)

	var victim supervisor.Exit
	require.NoError(t, syscall.Kill(d.spawner.pid("data0"), syscall.SIGKILL))
	select {
	case victim = <-d.sup.Exits():
	case <-time.After(5 * time.Second):
		t.Fatal("killed worker was not reaped")
	}
	assert.Equal(t, "data0", victim.Resource)

	status = d.status(t, "all")
	require.Len(t, status, 2)
	assert.Equal(t, types.ErrWorkerUnreachable, status[0].Err)
	assert.Nil(t, status[0].Report)
	assert.NoError(t, status[1].Err)
	require.NotNil(t, status[1].Report)
	assert.Equal(t, types.StatusComplete, status[1].Report.Status)

	// once the exit reaches the control loop the worker is restarted
	d.exits <- victim
	assert.Eventually(t, func() bool {
		status, err := d.client.Status(context.Background(), "data0")
		if err != nil || len(status) != 1 {
			return false
		}
		return status[0].Err == nil && status[0].Report != nil && status[0].Report.Status == types.StatusComplete
	}, 5*time.Second, 20*time.Millisecond)
}

// recordingSpawner remembers the last handle started per resource
type recordingSpawner struct {
	*supervisor.Supervisor

	mu      sync.Mutex
	handles map[string]*supervisor.Handle
}

func (r *recordingSpawner) Start(res types.ResourceConfig) (*supervisor.Handle, error) {
	h, err := r.Supervisor.Start(res)
	if err == nil {
		r.mu.Lock()
		r.handles[res.Name] = h
		r.mu.Unlock()
	}
	return h, err
}

func (r *recordingSpawner) pid(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[name].PID()
}
