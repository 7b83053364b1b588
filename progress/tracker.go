package progress

import (
	"strings"
	"sync"

	"playground.evalgo.org/operations"
)

// Tracker translates operation snapshots into visual updates for a
// Renderer. It owns the per-container guards that keep rendering
// idempotent and order-tolerant:
//
//   - a last-applied-phase map suppresses duplicate renders for repeated
//     identical snapshots
//   - a hiding set, populated before the terminal render, makes late
//     in-progress snapshots for a completed container no-ops
//   - a script-caused flag keeps script-clear events from undoing a
//     settled color, and settled colors from clobbering a running script
//
// One Tracker is instantiated per session.
type Tracker struct {
	renderer Renderer

	mu            sync.Mutex
	currentPhases map[string]Phase
	hiding        map[string]bool
	scriptCaused  map[string]bool
	finalSet      map[string]bool
	settled       map[string]State
	lastRunning   map[string]bool
}

// NewTracker creates a tracker pushing updates to renderer.
func NewTracker(renderer Renderer) *Tracker {
	return &Tracker{
		renderer:      renderer,
		currentPhases: make(map[string]Phase),
		hiding:        make(map[string]bool),
		scriptCaused:  make(map[string]bool),
		finalSet:      make(map[string]bool),
		settled:       make(map[string]State),
		lastRunning:   make(map[string]bool),
	}
}

// Apply processes one status snapshot. Phase state is applied first, then
// script activity, so a running script always wins the visual.
func (t *Tracker) Apply(snap *operations.Snapshot) {
	if snap == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	running := make(map[string]bool, len(snap.ScriptsRunning))
	for _, ref := range snap.ScriptsRunning {
		running[ref.Container] = true
	}

	t.applyPhase(snap, running)
	t.applyScripts(snap, running)
}

// applyPhase renders the current Docker phase for the snapshot's subject
// container. Caller holds the lock.
func (t *Tracker) applyPhase(snap *operations.Snapshot, scriptsRunning map[string]bool) {
	container := snap.Container
	phase := Phase(snap.Phase)
	if container == "" || phase == "" {
		return
	}

	// Late snapshots for a completed container are ignored outright.
	if t.hiding[container] {
		return
	}

	// Repeated identical snapshots produce no second render.
	if t.currentPhases[container] == phase {
		return
	}
	t.currentPhases[container] = phase

	if !phase.IsTerminal() {
		icon, text := phase.Display()
		t.renderer.Render(container, Visual{State: StateWorking, Icon: icon, Text: text})
		return
	}

	// Entering completed: hide before rendering so no concurrent or stale
	// snapshot can reopen the indicator.
	t.hiding[container] = true
	delete(t.currentPhases, container)

	// The settled color follows the operation kind just finished, not a
	// probe of possibly-stale prior state.
	isStart := snap.Kind.IsStart()
	t.lastRunning[container] = isStart
	settled := StateStopped
	if isStart {
		settled = StateRunning
	}
	t.settled[container] = settled
	t.finalSet[container] = true

	// A running script keeps the visual until its own clear event, which
	// will pick up the recorded settled state.
	if scriptsRunning[container] {
		return
	}

	t.renderer.Render(container, t.settledVisual(settled))
	t.renderer.Hide(container)
}

// applyScripts overlays lifecycle script activity. Caller holds the lock.
func (t *Tracker) applyScripts(snap *operations.Snapshot, running map[string]bool) {
	for _, ref := range snap.ScriptsRunning {
		if t.scriptCaused[ref.Container] {
			continue
		}
		t.scriptCaused[ref.Container] = true
		t.renderer.Render(ref.Container, Visual{
			State: StateScript,
			Icon:  "📜",
			Text:  "Running " + strings.ReplaceAll(ref.Type, "_", "-") + " script",
		})
	}

	for _, ref := range snap.ScriptsCompleted {
		if running[ref.Container] {
			continue
		}
		// Only a yellow state this overlay caused is cleared here. A blue
		// in-flight Docker state or a settled color stays untouched.
		if !t.scriptCaused[ref.Container] {
			continue
		}
		t.scriptCaused[ref.Container] = false

		if t.finalSet[ref.Container] {
			t.renderer.Render(ref.Container, t.settledVisual(t.settled[ref.Container]))
			t.renderer.Hide(ref.Container)
			continue
		}

		restored := Visual{State: StateStopped, Icon: "⏹️", Text: "Stopped"}
		if t.lastRunning[ref.Container] {
			restored = Visual{State: StateRunning, Icon: "✅", Text: "Running"}
		}
		t.renderer.Render(ref.Container, restored)
	}
}

// settledVisual is the authoritative final state after an operation
// completed. Refresh routines must leave it alone.
func (t *Tracker) settledVisual(state State) Visual {
	if state == StateRunning {
		return Visual{State: StateRunning, Icon: "✅", Text: "Running", Final: true}
	}
	return Visual{State: StateStopped, Icon: "⏹️", Text: "Stopped", Final: true}
}

// SetRunning seeds the last known running flag for a container, used to
// restore its color when a standalone script clears.
func (t *Tracker) SetRunning(container string, running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRunning[container] = running
}

// Reset clears all guards for the containers, making them renderable by a
// new operation. With no arguments every container is reset.
func (t *Tracker) Reset(containers ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(containers) == 0 {
		t.currentPhases = make(map[string]Phase)
		t.hiding = make(map[string]bool)
		t.scriptCaused = make(map[string]bool)
		t.finalSet = make(map[string]bool)
		t.settled = make(map[string]State)
		return
	}
	for _, c := range containers {
		delete(t.currentPhases, c)
		delete(t.hiding, c)
		delete(t.scriptCaused, c)
		delete(t.finalSet, c)
		delete(t.settled, c)
	}
}
