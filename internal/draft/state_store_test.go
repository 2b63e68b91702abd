package draft

import (
	"context"
	"testing"

	"advocase/pkg/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *StateStore {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewStateStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadMissingStateIsEmpty(t *testing.T) {
	store := setupTestStore(t)

	state, err := store.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, state.ActiveCaseID)
	assert.Nil(t, state.Progress)
	assert.Nil(t, state.Draft)
}

func TestSaveAndLoadState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	saved := &types.ClientState{
		ActiveCaseID: "case-1",
		Draft: types.Application{
			types.SectionVictim: {"first_name": "Ada"},
		},
	}
	require.NoError(t, store.Save(ctx, "user-1", saved))

	loaded, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "case-1", loaded.ActiveCaseID)
	assert.Equal(t, "Ada", loaded.Draft[types.SectionVictim]["first_name"])
}

func TestStateIsNamespacedByUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "user-1", &types.ClientState{ActiveCaseID: "case-1"}))
	require.NoError(t, store.Save(ctx, "user-2", &types.ClientState{ActiveCaseID: "case-2"}))

	one, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	two, err := store.Load(ctx, "user-2")
	require.NoError(t, err)

	assert.Equal(t, "case-1", one.ActiveCaseID)
	assert.Equal(t, "case-2", two.ActiveCaseID)
}

func TestClearState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "user-1", &types.ClientState{ActiveCaseID: "case-1"}))
	require.NoError(t, store.Clear(ctx, "user-1"))

	state, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, state.ActiveCaseID)
}
