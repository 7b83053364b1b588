package console

import "sync"

// Manager enforces one live session per console key. Opening a console
// for a key tears down the previous session first, so two sockets never
// race over one terminal.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Open registers the session under its key, closing any previous session
// for the same key.
func (m *Manager) Open(key string, s *Session) {
	m.mu.Lock()
	prev := m.sessions[key]
	m.sessions[key] = s
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Release removes the session for the key if it is still the current one
// and closes it.
func (m *Manager) Release(key string, s *Session) {
	m.mu.Lock()
	if m.sessions[key] == s {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	s.Close()
}

// CloseAll tears down every live session. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
