// Package progress turns operation status snapshots into ordered,
// non-flickering visual state updates and settled notifications.
//
// A Tracker owns the per-container rendering guards, a Poller drives it
// from periodic status fetches. Both are instantiated per session so tests
// can construct fresh instances.
package progress

// Phase is a named sub-step within an operation's execution.
type Phase string

const (
	PhaseRemovingExisting  Phase = "removing_existing"
	PhasePreparingVolumes  Phase = "preparing_volumes"
	PhaseCreatingVolumes   Phase = "creating_volumes"
	PhasePullingImage      Phase = "pulling_image"
	PhaseStartingContainer Phase = "starting_container"
	PhaseLaunching         Phase = "launching"
	PhaseWaitingReady      Phase = "waiting_ready"
	PhaseRunningPostStart  Phase = "running_post_start"
	PhaseRunningPreStop    Phase = "running_pre_stop"
	PhaseStopping          Phase = "stopping"
	PhaseRemoving          Phase = "removing"
	PhaseCompleted         Phase = "completed"
)

type phaseDisplay struct {
	icon string
	text string
}

// Extend by adding table rows; unknown phases fall back to "processing".
var phaseDisplays = map[Phase]phaseDisplay{
	PhaseRemovingExisting:  {"🗑️", "Removing existing container"},
	PhasePreparingVolumes:  {"📦", "Preparing volumes"},
	PhaseCreatingVolumes:   {"📦", "Creating volumes"},
	PhasePullingImage:      {"⬇️", "Pulling image"},
	PhaseStartingContainer: {"🚀", "Starting container"},
	PhaseLaunching:         {"🚀", "Launching"},
	PhaseWaitingReady:      {"⏳", "Waiting until ready"},
	PhaseRunningPostStart:  {"📜", "Running post-start script"},
	PhaseRunningPreStop:    {"📜", "Running pre-stop script"},
	PhaseStopping:          {"🛑", "Stopping"},
	PhaseRemoving:          {"🗑️", "Removing"},
	PhaseCompleted:         {"✅", "Completed"},
}

// Display returns the icon and text for the phase. Unknown phases render a
// generic "processing" pair, never an error.
func (p Phase) Display() (icon, text string) {
	if d, ok := phaseDisplays[p]; ok {
		return d.icon, d.text
	}
	return "⚙️", "Processing"
}

// IsTerminal reports whether the phase ends the per-container indicator.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted
}
