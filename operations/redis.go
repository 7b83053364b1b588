package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for setups where several
// playground instances share one operation ledger (e.g. a dashboard
// polling a different instance than the one executing).
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	prefix string
	retain time.Duration

	// Guards read-modify-write cycles within this instance. Cross-instance
	// writers are not expected: each operation is mutated only by the
	// instance executing it.
	mu sync.Mutex
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL is the Redis connection URL (redis://host:port/db)
	URL string
	// KeyPrefix for operation keys (defaults to "playground:op:")
	KeyPrefix string
	// RetainFor is the TTL applied to terminal operations (default 5m)
	RetainFor time.Duration
}

// NewRedisStore creates a Redis-backed operation store and verifies the
// connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "playground:op:"
	}
	retain := cfg.RetainFor
	if retain == 0 {
		retain = 5 * time.Minute
	}

	return &RedisStore{
		client: client,
		ctx:    ctx,
		prefix: prefix,
		retain: retain,
	}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Begin registers a new running operation.
func (s *RedisStore) Begin(kind Kind, label string, total *int) (string, error) {
	op := &Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Label:     label,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	if total != nil {
		t := *total
		op.Total = &t
	}

	if err := s.put(op, 0); err != nil {
		return "", err
	}
	return op.ID, nil
}

// SetPhase records the current sub-phase for the operation.
func (s *RedisStore) SetPhase(id, phase, container string) error {
	return s.update(id, func(op *Operation) {
		op.Phase = phase
		op.Container = container
	})
}

// Add increments an outcome counter.
func (s *RedisStore) Add(id string, counter Counter) error {
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
func (s *RedisStore) AppendError(id, msg string) error {
	return s.update(id, func(op *Operation) {
		op.Errors = append(op.Errors, msg)
	})
}

// MarkScriptRunning records a lifecycle script as in flight.
func (s *RedisStore) MarkScriptRunning(id string, ref ScriptRef) error {
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
func (s *RedisStore) MarkScriptCompleted(id string, ref ScriptRef) error {
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

// Complete marks the operation completed and applies the retention TTL.
func (s *RedisStore) Complete(id string) error {
	return s.update(id, func(op *Operation) {
		s.finish(op, StatusCompleted)
	})
}

// Fail marks the operation as a total failure and applies the retention TTL.
func (s *RedisStore) Fail(id string, msg string) error {
	return s.update(id, func(op *Operation) {
		if msg != "" {
			op.Errors = append(op.Errors, msg)
		}
		s.finish(op, StatusError)
	})
}

func (s *RedisStore) finish(op *Operation, status Status) {
	if op.Status.IsTerminal() {
		return
	}
	now := time.Now()
	op.Status = status
	op.CompletedAt = &now
	op.Duration = now.Sub(op.StartedAt).String()
	op.Phase = "completed"
}

// Get returns a snapshot of the operation, or nil when unknown or expired.
func (s *RedisStore) Get(id string) (*Snapshot, error) {
	data, err := s.client.Get(s.ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return &op, nil
}

// List returns snapshots of all tracked operations.
func (s *RedisStore) List() ([]*Snapshot, error) {
	keys, err := s.client.Keys(s.ctx, s.prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(s.ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get operation: %w", err)
		}
		var op Operation
		if err := json.Unmarshal(data, &op); err != nil {
			continue
		}
		snapshots = append(snapshots, &op)
	}
	return snapshots, nil
}

// update applies fn in a read-modify-write cycle. Unknown ids are ignored.
func (s *RedisStore) update(id string, fn func(*Operation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.client.Get(s.ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get operation: %w", err)
	}

	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return fmt.Errorf("failed to unmarshal operation: %w", err)
	}

	fn(&op)

	ttl := time.Duration(0)
	if op.Status.IsTerminal() {
		ttl = s.retain
	}
	return s.put(&op, ttl)
}

// put stores the operation, optionally with a TTL.
func (s *RedisStore) put(op *Operation, ttl time.Duration) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	if err := s.client.Set(s.ctx, s.key(op.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store operation: %w", err)
	}
	return nil
}
