package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/replicad/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStore_SaveAndGetRole(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveRole(&types.RoleRecord{Resource: "r0", From: types.RoleInit, To: types.RolePrimary, ChangedAt: now}))

	got, err := store.GetRole("r0")
	require.NoError(t, err)
	assert.Equal(t, "r0", got.Resource)
	assert.Equal(t, types.RoleInit, got.From)
	assert.Equal(t, types.RolePrimary, got.To)
	assert.True(t, now.Equal(got.ChangedAt))

	require.NoError(t, store.SaveRole(&types.RoleRecord{Resource: "r0", From: types.RolePrimary, To: types.RoleSecondary, ChangedAt: now}))
	got, err = store.GetRole("r0")
	require.NoError(t, err)
	assert.Equal(t, types.RoleSecondary, got.To)
}

func TestBoltStore_GetRoleNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRole("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBoltStore_ListRoles(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRole(&types.RoleRecord{Resource: name, From: types.RoleInit, To: types.RoleSecondary}))
	}

	records, err := store.ListRoles()
	require.NoError(t, err)
	require.Len(t, records, 3)
	// keys iterate in byte order
	assert.Equal(t, "a", records[0].Resource)
	assert.Equal(t, "c", records[2].Resource)
}

func TestBoltStore_History(t *testing.T) {
	store := newTestStore(t)
	store.historyLimit = 3

	roles := []types.Role{types.RolePrimary, types.RoleSecondary, types.RoleInit, types.RolePrimary, types.RoleSecondary}
	from := types.RoleInit
	for _, to := range roles {
		require.NoError(t, store.SaveRole(&types.RoleRecord{Resource: "r0", From: from, To: to}))
		from = to
	}

	history, err := store.History("r0", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, types.RoleSecondary, history[0].To)
	assert.Equal(t, types.RolePrimary, history[1].To)
	assert.Equal(t, types.RoleInit, history[2].To)

	history, err = store.History("r0", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.RoleSecondary, history[0].To)

	history, err = store.History("other", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBoltStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveRole(&types.RoleRecord{Resource: "r0", From: types.RoleInit, To: types.RolePrimary}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetRole("r0")
	require.NoError(t, err)
	assert.Equal(t, types.RolePrimary, got.To)
}
