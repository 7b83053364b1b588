package operations

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), RedisConfig{
		URL:       "redis://" + mr.Addr(),
		RetainFor: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_BeginAndGet(t *testing.T) {
	store, _ := newTestRedisStore(t)

	total := 2
	id, err := store.Begin(KindStopGroup, "LAMP", &total)
	require.NoError(t, err)

	op, err := store.Get(id)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, KindStopGroup, op.Kind)
	assert.Equal(t, StatusRunning, op.Status)
	require.NotNil(t, op.Total)
	assert.Equal(t, 2, *op.Total)
}

func TestRedisStore_GetUnknown(t *testing.T) {
	store, _ := newTestRedisStore(t)
	op, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, op)
}

func TestRedisStore_UpdateFlow(t *testing.T) {
	store, _ := newTestRedisStore(t)

	id, err := store.Begin(KindStart, "mysql", nil)
	require.NoError(t, err)

	require.NoError(t, store.SetPhase(id, "starting_container", "mysql"))
	require.NoError(t, store.Add(id, CounterStarted))
	ref := ScriptRef{Container: "mysql", Type: "post_start"}
	require.NoError(t, store.MarkScriptRunning(id, ref))
	require.NoError(t, store.MarkScriptCompleted(id, ref))
	require.NoError(t, store.Complete(id))

	op, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, op.Status)
	assert.Equal(t, "completed", op.Phase)
	assert.Equal(t, 1, op.Started)
	assert.Empty(t, op.ScriptsRunning)
	assert.Equal(t, []ScriptRef{ref}, op.ScriptsCompleted)
	require.NotNil(t, op.CompletedAt)
}

func TestRedisStore_TerminalTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)

	id, err := store.Begin(KindStop, "apache", nil)
	require.NoError(t, err)

	// Running operations carry no TTL.
	assert.Equal(t, time.Duration(0), mr.TTL(store.key(id)))

	require.NoError(t, store.Fail(id, "container not found"))
	assert.Equal(t, time.Minute, mr.TTL(store.key(id)))

	// Expired operations read back as unknown.
	mr.FastForward(2 * time.Minute)
	op, err := store.Get(id)
	require.NoError(t, err)
	assert.Nil(t, op)
}

func TestRedisStore_List(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.Begin(KindStart, "a", nil)
	require.NoError(t, err)
	_, err = store.Begin(KindStop, "b", nil)
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRedisStore_UpdateUnknownIDIsIgnored(t *testing.T) {
	store, _ := newTestRedisStore(t)
	require.NoError(t, store.Add("gone", CounterStopped))
	require.NoError(t, store.Complete("gone"))
}
