package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Levels(t *testing.T) {
	sink := NewMemorySink(0)
	d := NewDispatcher(sink, time.Millisecond)

	d.Success("all containers started")
	d.Warning("2 containers failed to stop")
	d.Error("mysql: no such container")

	notices := sink.Notices()
	require.Len(t, notices, 3)
	assert.Equal(t, LevelSuccess, notices[0].Level)
	assert.Equal(t, LevelWarning, notices[1].Level)
	assert.Equal(t, LevelError, notices[2].Level)
	assert.Equal(t, "mysql: no such container", notices[2].Message)
}

func TestDispatcher_ErrorListOrderAndPacing(t *testing.T) {
	sink := NewMemorySink(0)
	d := NewDispatcher(sink, 20*time.Millisecond)

	msgs := []string{"apache: port in use", "php: image pull failed", "mysql: exited early"}
	start := time.Now()
	require.NoError(t, d.ErrorList(context.Background(), msgs))
	elapsed := time.Since(start)

	notices := sink.Notices()
	require.Len(t, notices, 3)
	for i, msg := range msgs {
		assert.Equal(t, LevelError, notices[i].Level)
		assert.Equal(t, msg, notices[i].Message)
	}

	// First notice is immediate, the remaining two are paced.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestDispatcher_ErrorListCancelled(t *testing.T) {
	sink := NewMemorySink(0)
	d := NewDispatcher(sink, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := d.ErrorList(ctx, []string{"first", "second"})
	require.Error(t, err)
	// Only the first message got out before cancellation.
	assert.Len(t, sink.Notices(), 1)
}

func TestMemorySink_Cap(t *testing.T) {
	sink := NewMemorySink(2)
	sink.Notify(LevelSuccess, "a")
	sink.Notify(LevelSuccess, "b")
	sink.Notify(LevelSuccess, "c")

	notices := sink.Notices()
	require.Len(t, notices, 2)
	assert.Equal(t, "b", notices[0].Message)
	assert.Equal(t, "c", notices[1].Message)
}
