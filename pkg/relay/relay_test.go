package relay

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/replicad/pkg/resource"
	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/types"
	"github.com/cuemby/replicad/pkg/worker/workertest"
)

func TestMain(m *testing.M) {
	workertest.Main(m)
}

func newResource(name string, role types.Role) *resource.Resource {
	return &resource.Resource{
		ResourceConfig: types.ResourceConfig{Name: name, ExtentSize: 2 << 20, KeepDirty: 64},
		Role:           role,
	}
}

func startWorker(t *testing.T, res *resource.Resource) *supervisor.Supervisor {
	t.Helper()
	sup := supervisor.New(workertest.Config(5 * time.Second))
	h, err := sup.Start(res.ResourceConfig)
	require.NoError(t, err)
	res.Worker = h
	t.Cleanup(func() {
		sup.Stop(h)
		sup.Close()
	})
	return sup
}

func TestQueryStatus_NoWorker(t *testing.T) {
	r := New(time.Second)

	for _, role := range []types.Role{types.RoleInit, types.RoleSecondary, types.RolePrimary} {
		report, err := r.QueryStatus(newResource("data1", role))
		require.NoError(t, err)
		assert.Equal(t, types.StatusReport{Status: types.StatusDegraded, ExtentSize: 2 << 20}, report)
	}
}

func TestQueryStatus_Worker(t *testing.T) {
	res := newResource("data0", types.RolePrimary)
	startWorker(t, res)

	report, err := New(5 * time.Second).QueryStatus(res)
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, report.Status)
	assert.Equal(t, uint64(workertest.Dirty), report.Dirty)
	assert.Equal(t, uint32(workertest.ExtentSize), report.ExtentSize)
	assert.Equal(t, uint32(workertest.KeepDirty), report.KeepDirty)
}

func TestQueryStatus_NotPrimaryZeroesDirty(t *testing.T) {
	res := newResource("data0", types.RoleSecondary)
	startWorker(t, res)

	report, err := New(5 * time.Second).QueryStatus(res)
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, report.Status)
	assert.Zero(t, report.Dirty)
	assert.Zero(t, report.KeepDirty)
	assert.Equal(t, uint32(workertest.ExtentSize), report.ExtentSize)
}

func TestQueryStatus_KilledWorker(t *testing.T) {
	res := newResource("data0", types.RolePrimary)
	startWorker(t, res)

	require.NoError(t, syscall.Kill(res.Worker.PID(), syscall.SIGKILL))
	select {
	case <-res.Worker.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker was not reaped")
	}

	r := New(time.Second)
	_, err := r.QueryStatus(res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrWorkerUnreachable))
	assert.Equal(t, types.ErrWorkerUnreachable, types.CodeOf(err))

	// the channel stays unusable
	_, err = r.QueryStatus(res)
	assert.Equal(t, types.ErrWorkerUnreachable, types.CodeOf(err))
}
