// Package operations tracks asynchronous container operations.
//
// Every bulk or single container action (start, stop, start-group, ...) is
// registered here under an opaque operation id. The executor mutates the
// operation as it progresses; clients poll read-only snapshots until a
// terminal status.
package operations

import "time"

// Kind identifies the type of a tracked operation.
type Kind string

const (
	KindStart      Kind = "start"
	KindStop       Kind = "stop"
	KindStartGroup Kind = "start_group"
	KindStopGroup  Kind = "stop_group"
	KindRestartAll Kind = "restart_all"
	KindCleanupAll Kind = "cleanup_all"
)

// IsStart reports whether the kind's settled outcome is "running".
func (k Kind) IsStart() bool {
	return k == KindStart || k == KindStartGroup || k == KindRestartAll
}

// Status represents the state of an operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// IsTerminal returns true once the operation will no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Counter names the per-outcome counters an operation accumulates.
type Counter string

const (
	CounterStarted        Counter = "started"
	CounterStopped        Counter = "stopped"
	CounterAlreadyRunning Counter = "already_running"
	CounterNotRunning     Counter = "not_running"
	CounterFailed         Counter = "failed"
	CounterRemoved        Counter = "removed"
)

// ScriptRef identifies one lifecycle script invocation.
type ScriptRef struct {
	Container string `json:"container"`
	Type      string `json:"type"`
}

// Operation represents one tracked asynchronous action.
type Operation struct {
	ID          string     `json:"operation_id"`
	Kind        Kind       `json:"operation"`
	Label       string     `json:"label,omitempty"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`

	// Total is the expected unit count; nil when unknown.
	Total *int `json:"total,omitempty"`

	// Per-outcome counters. Only counters relevant to the kind are set.
	Started        int `json:"started,omitempty"`
	Stopped        int `json:"stopped,omitempty"`
	AlreadyRunning int `json:"already_running,omitempty"`
	NotRunning     int `json:"not_running,omitempty"`
	Failed         int `json:"failed,omitempty"`
	Removed        int `json:"removed,omitempty"`

	// Errors holds human-readable failure messages in occurrence order.
	Errors []string `json:"errors,omitempty"`

	// Phase is the current sub-phase, Container its subject.
	Phase     string `json:"operation_phase,omitempty"`
	Container string `json:"container_name,omitempty"`

	// Lifecycle script activity in this operation.
	ScriptsRunning   []ScriptRef `json:"scripts_running,omitempty"`
	ScriptsCompleted []ScriptRef `json:"scripts_completed,omitempty"`
}

// Snapshot is a point-in-time copy of an operation, safe to hand to
// clients. Slices are copied so later mutations don't leak through.
type Snapshot = Operation

// snapshot returns a deep copy of the operation.
func (op *Operation) snapshot() *Snapshot {
	cp := *op
	if op.Total != nil {
		total := *op.Total
		cp.Total = &total
	}
	cp.Errors = append([]string(nil), op.Errors...)
	cp.ScriptsRunning = append([]ScriptRef(nil), op.ScriptsRunning...)
	cp.ScriptsCompleted = append([]ScriptRef(nil), op.ScriptsCompleted...)
	return &cp
}

// TerminalCount sums the counters that represent finished units.
func (op *Operation) TerminalCount() int {
	return op.Started + op.Stopped + op.AlreadyRunning + op.NotRunning + op.Failed + op.Removed
}
