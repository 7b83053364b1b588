package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground.evalgo.org/operations"
)

type renderCall struct {
	container string
	visual    Visual
}

type recordingRenderer struct {
	mu      sync.Mutex
	renders []renderCall
	hides   []string
}

func (r *recordingRenderer) Render(container string, v Visual) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, renderCall{container, v})
}

func (r *recordingRenderer) Hide(container string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hides = append(r.hides, container)
}

func (r *recordingRenderer) calls() []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderCall(nil), r.renders...)
}

func (r *recordingRenderer) last() renderCall {
	calls := r.calls()
	return calls[len(calls)-1]
}

func snapshot(kind operations.Kind, container string, phase Phase) *operations.Snapshot {
	return &operations.Snapshot{
		Kind:      kind,
		Status:    operations.StatusRunning,
		Container: container,
		Phase:     string(phase),
	}
}

func TestTracker_IdempotentRendering(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStart, "mysql", PhasePullingImage))
	tr.Apply(snapshot(operations.KindStart, "mysql", PhasePullingImage))

	calls := r.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, StateWorking, calls[0].visual.State)
	assert.Equal(t, "Pulling image", calls[0].visual.Text)
}

func TestTracker_PhaseProgression(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStart, "mysql", PhasePullingImage))
	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseStartingContainer))
	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseWaitingReady))

	calls := r.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "Pulling image", calls[0].visual.Text)
	assert.Equal(t, "Starting container", calls[1].visual.Text)
	assert.Equal(t, "Waiting until ready", calls[2].visual.Text)
}

func TestTracker_UnknownPhaseFallsBack(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStart, "mysql", Phase("defragmenting")))

	require.Len(t, r.calls(), 1)
	assert.Equal(t, "Processing", r.last().visual.Text)
	assert.Equal(t, StateWorking, r.last().visual.State)
}

func TestTracker_CompletedSettlesColorFromKind(t *testing.T) {
	cases := []struct {
		kind operations.Kind
		want State
	}{
		{operations.KindStart, StateRunning},
		{operations.KindStartGroup, StateRunning},
		{operations.KindRestartAll, StateRunning},
		{operations.KindStop, StateStopped},
		{operations.KindStopGroup, StateStopped},
		{operations.KindCleanupAll, StateStopped},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			r := &recordingRenderer{}
			tr := NewTracker(r)

			tr.Apply(snapshot(tc.kind, "mysql", PhaseCompleted))

			require.Len(t, r.calls(), 1)
			assert.Equal(t, tc.want, r.last().visual.State)
			assert.True(t, r.last().visual.Final)
			assert.Equal(t, []string{"mysql"}, r.hides)
		})
	}
}

func TestTracker_NoResurrectionAfterCompleted(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseStartingContainer))
	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseCompleted))
	before := len(r.calls())

	// A stale in-progress snapshot arriving after completion is a no-op.
	tr.Apply(snapshot(operations.KindStart, "mysql", PhasePullingImage))
	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseStartingContainer))

	assert.Len(t, r.calls(), before)
	assert.Equal(t, StateRunning, r.last().visual.State)
}

func TestTracker_ContainersAreIndependent(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStartGroup, "mysql", PhaseCompleted))
	tr.Apply(snapshot(operations.KindStartGroup, "apache", PhasePullingImage))

	calls := r.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "apache", calls[1].container)
	assert.Equal(t, StateWorking, calls[1].visual.State)
}

func TestTracker_ScriptForcesYellowOnce(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	snap := snapshot(operations.KindStart, "mysql", PhaseRunningPostStart)
	snap.ScriptsRunning = []operations.ScriptRef{{Container: "mysql", Type: "post_start"}}

	tr.Apply(snap)
	tr.Apply(snap)

	calls := r.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, StateWorking, calls[0].visual.State)
	assert.Equal(t, StateScript, calls[1].visual.State)
	assert.Equal(t, "Running post-start script", calls[1].visual.Text)
}

func TestTracker_ScriptPrecedenceOverCompleted(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	ref := operations.ScriptRef{Container: "mysql", Type: "post_start"}

	running := snapshot(operations.KindStart, "mysql", PhaseRunningPostStart)
	running.ScriptsRunning = []operations.ScriptRef{ref}
	tr.Apply(running)

	// Docker reports completed while the script is still running. The
	// yellow visual must survive.
	completed := snapshot(operations.KindStart, "mysql", PhaseCompleted)
	completed.ScriptsRunning = []operations.ScriptRef{ref}
	tr.Apply(completed)

	assert.Equal(t, StateScript, r.last().visual.State)

	// The script clear event applies the recorded settled state.
	cleared := snapshot(operations.KindStart, "mysql", PhaseCompleted)
	cleared.ScriptsCompleted = []operations.ScriptRef{ref}
	tr.Apply(cleared)

	assert.Equal(t, StateRunning, r.last().visual.State)
	assert.True(t, r.last().visual.Final)
	assert.Contains(t, r.hides, "mysql")
}

func TestTracker_ScriptClearRestoresLastKnownState(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)
	tr.SetRunning("mysql", true)

	ref := operations.ScriptRef{Container: "mysql", Type: "pre_stop"}

	running := snapshot(operations.KindStop, "mysql", PhaseRunningPreStop)
	running.ScriptsRunning = []operations.ScriptRef{ref}
	tr.Apply(running)
	assert.Equal(t, StateScript, r.last().visual.State)

	cleared := snapshot(operations.KindStop, "mysql", PhaseRunningPreStop)
	cleared.ScriptsCompleted = []operations.ScriptRef{ref}
	tr.Apply(cleared)

	// No completed transition happened, so the color falls back to the
	// last known running flag and is not final.
	assert.Equal(t, StateRunning, r.last().visual.State)
	assert.False(t, r.last().visual.Final)
}

func TestTracker_ScriptClearWithoutScriptIsIgnored(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseStartingContainer))
	before := len(r.calls())

	// A completed script that never forced yellow here must not repaint.
	snap := snapshot(operations.KindStart, "mysql", PhaseStartingContainer)
	snap.ScriptsCompleted = []operations.ScriptRef{{Container: "mysql", Type: "post_start"}}
	tr.Apply(snap)

	assert.Len(t, r.calls(), before)
}

func TestTracker_Reset(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(r)

	tr.Apply(snapshot(operations.KindStart, "mysql", PhaseCompleted))
	tr.Reset("mysql")

	// A new operation for the container renders again.
	tr.Apply(snapshot(operations.KindStop, "mysql", PhaseStopping))
	assert.Equal(t, StateWorking, r.last().visual.State)
	assert.Equal(t, "Stopping", r.last().visual.Text)
}
