package operations

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the interface the executor mutates and the API polls.
type Store interface {
	// Begin registers a new operation and returns its id.
	Begin(kind Kind, label string, total *int) (string, error)

	// SetPhase records the current sub-phase and its subject container.
	SetPhase(id, phase, container string) error

	// Add increments one of the outcome counters.
	Add(id string, counter Counter) error

	// AppendError records a human-readable failure message.
	AppendError(id, msg string) error

	// MarkScriptRunning records a lifecycle script as in flight.
	MarkScriptRunning(id string, ref ScriptRef) error

	// MarkScriptCompleted moves a lifecycle script to the completed list.
	MarkScriptCompleted(id string, ref ScriptRef) error

	// Complete marks the operation completed (possibly with failures).
	Complete(id string) error

	// Fail marks the operation as a total failure.
	Fail(id string, msg string) error

	// Get returns a point-in-time snapshot, or nil when unknown.
	Get(id string) (*Snapshot, error)

	// List returns snapshots of all tracked operations.
	List() ([]*Snapshot, error)
}

// MemoryStore is the default single-instance Store.
type MemoryStore struct {
	mu         sync.RWMutex
	operations map[string]*Operation
	maxTracked int
	retainFor  time.Duration
	now        func() time.Time
}

// MemoryConfig configures a MemoryStore.
type MemoryConfig struct {
	// MaxTracked caps tracked operations; oldest are evicted beyond it.
	// Defaults to 1000.
	MaxTracked int
	// RetainFor is the grace period terminal operations stay queryable.
	// Defaults to 5 minutes.
	RetainFor time.Duration
}

// NewMemoryStore creates a new in-memory operation store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.MaxTracked == 0 {
		cfg.MaxTracked = 1000
	}
	if cfg.RetainFor == 0 {
		cfg.RetainFor = 5 * time.Minute
	}
	return &MemoryStore{
		operations: make(map[string]*Operation),
		maxTracked: cfg.MaxTracked,
		retainFor:  cfg.RetainFor,
		now:        time.Now,
	}
}

// Begin registers a new running operation.
func (s *MemoryStore) Begin(kind Kind, label string, total *int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	if len(s.operations) >= s.maxTracked {
		s.evictOldestLocked()
	}

	op := &Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Label:     label,
		Status:    StatusRunning,
		StartedAt: s.now(),
	}
	if total != nil {
		t := *total
		op.Total = &t
	}

	s.operations[op.ID] = op
	return op.ID, nil
}

// SetPhase records the current sub-phase for the operation.
func (s *MemoryStore) SetPhase(id, phase, container string) error {
	return s.update(id, func(op *Operation) {
		op.Phase = phase
		op.Container = container
	})
}

// Add increments an outcome counter.
func (s *MemoryStore) Add(id string, counter Counter) error {
	return s.update(id, func(op *Operation) {
		switch counter {
		case CounterStarted:
			op.Started++
		case CounterStopped:
			op.Stopped++
		case CounterAlreadyRunning:
			op.AlreadyRunning++
		case CounterNotRunning:
			op.NotRunning++
		case CounterFailed:
			op.Failed++
		case CounterRemoved:
			op.Removed++
		}
	})
}

// AppendError records a failure message.
func (s *MemoryStore) AppendError(id, msg string) error {
	return s.update(id, func(op *Operation) {
		op.Errors = append(op.Errors, msg)
	})
}

// MarkScriptRunning records a lifecycle script as in flight.
func (s *MemoryStore) MarkScriptRunning(id string, ref ScriptRef) error {
	return s.update(id, func(op *Operation) {
		for _, r := range op.ScriptsRunning {
			if r == ref {
				return
			}
		}
		op.ScriptsRunning = append(op.ScriptsRunning, ref)
	})
}

// MarkScriptCompleted moves a lifecycle script from running to completed.
func (s *MemoryStore) MarkScriptCompleted(id string, ref ScriptRef) error {
	return s.update(id, func(op *Operation) {
		kept := op.ScriptsRunning[:0]
		for _, r := range op.ScriptsRunning {
			if r != ref {
				kept = append(kept, r)
			}
		}
		op.ScriptsRunning = kept
		op.ScriptsCompleted = append(op.ScriptsCompleted, ref)
	})
}

// Complete marks the operation completed.
func (s *MemoryStore) Complete(id string) error {
	return s.update(id, func(op *Operation) {
		s.finishLocked(op, StatusCompleted)
	})
}

// Fail marks the operation as a total failure.
func (s *MemoryStore) Fail(id string, msg string) error {
	return s.update(id, func(op *Operation) {
		if msg != "" {
			op.Errors = append(op.Errors, msg)
		}
		s.finishLocked(op, StatusError)
	})
}

// finishLocked applies terminal bookkeeping. Caller holds the lock.
func (s *MemoryStore) finishLocked(op *Operation, status Status) {
	if op.Status.IsTerminal() {
		return
	}
	now := s.now()
	op.Status = status
	op.CompletedAt = &now
	op.Duration = now.Sub(op.StartedAt).String()
	op.Phase = "completed"
}

// Get returns a snapshot of the operation, or nil when unknown.
func (s *MemoryStore) Get(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, exists := s.operations[id]
	if !exists {
		return nil, nil
	}
	return op.snapshot(), nil
}

// List returns snapshots of all tracked operations.
func (s *MemoryStore) List() ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]*Snapshot, 0, len(s.operations))
	for _, op := range s.operations {
		snapshots = append(snapshots, op.snapshot())
	}
	return snapshots, nil
}

// update applies fn under the write lock. Unknown ids are ignored, matching
// the polling contract: a pruned operation simply stops being updatable.
func (s *MemoryStore) update(id string, fn func(*Operation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, exists := s.operations[id]; exists {
		fn(op)
	}
	return nil
}

// pruneLocked drops terminal operations past the retention grace period.
func (s *MemoryStore) pruneLocked() {
	cutoff := s.now().Add(-s.retainFor)
	for id, op := range s.operations {
		if op.CompletedAt != nil && op.CompletedAt.Before(cutoff) {
			delete(s.operations, id)
		}
	}
}

// evictOldestLocked removes the oldest operation.
func (s *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldestTime time.Time
	for id, op := range s.operations {
		if oldestID == "" || op.StartedAt.Before(oldestTime) {
			oldestID = id
			oldestTime = op.StartedAt
		}
	}
	if oldestID != "" {
		delete(s.operations, oldestID)
	}
}
