package notify

import (
	"sync"
	"time"
)

// MemorySink records notices in memory. It backs the notifications API
// endpoint and the tests.
type MemorySink struct {
	mu      sync.Mutex
	notices []Notice
	max     int
}

// NewMemorySink creates a sink that keeps at most max notices, dropping
// the oldest. max <= 0 keeps everything.
func NewMemorySink(max int) *MemorySink {
	return &MemorySink{max: max}
}

// Notify records the notice.
func (s *MemorySink) Notify(level Level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Message: message, Time: time.Now()})
	if s.max > 0 && len(s.notices) > s.max {
		s.notices = s.notices[len(s.notices)-s.max:]
	}
}

// Notices returns a copy of the recorded notices in delivery order.
func (s *MemorySink) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notice(nil), s.notices...)
}

// Clear drops all recorded notices.
func (s *MemorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = nil
}
