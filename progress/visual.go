package progress

// State is the authoritative visual state of one container. At most one
// state is displayed per container at a time.
type State string

const (
	// StateRunning is the settled green state.
	StateRunning State = "running"
	// StateStopped is the settled gray state.
	StateStopped State = "stopped"
	// StateScript is the yellow pulsing state while a lifecycle script runs.
	StateScript State = "script"
	// StateWorking is the blue state while a Docker phase is in flight.
	StateWorking State = "working"
)

// Visual is one rendered state update for a container.
type Visual struct {
	State State  `json:"state"`
	Icon  string `json:"icon,omitempty"`
	Text  string `json:"text,omitempty"`

	// Final marks the settled state after an operation completed. Status
	// refresh routines must not overwrite a final visual.
	Final bool `json:"final,omitempty"`
}

// Renderer receives ordered visual updates from a Tracker. Implementations
// push them to whatever surface displays container state.
type Renderer interface {
	// Render displays the visual for the container, replacing any previous one.
	Render(container string, v Visual)

	// Hide removes the progress indicator for the container.
	Hide(container string)
}
