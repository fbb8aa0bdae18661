package session

import (
	"sync"
	"time"
)

// Retention windows for the registry sweep. Finished attempts stay resident
// long enough for the result and review screens to be read; unfinished
// attempts nobody touches anymore count as abandoned. Starting an attempt
// needs no account on public tests, so without the sweep the registry would
// grow for the life of the process.
const (
	FinishedRetention  = 30 * time.Minute
	AbandonedRetention = 12 * time.Hour
	SweepInterval      = 5 * time.Minute
)

// Manager is the in-memory registry of active attempts, keyed by session ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts attempts that are stale as of now, per the retention windows,
// and returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.RLock()
	stale := make([]string, 0)
	for id, s := range m.sessions {
		if s.Stale(now, FinishedRetention, AbandonedRetention) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.Remove(id)
	}
	return len(stale)
}

// Sweeper runs Sweep every SweepInterval until stop is closed. A nil stop
// channel runs it for the life of the process.
func (m *Manager) Sweeper(stop <-chan struct{}) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(time.Now())
		case <-stop:
			return
		}
	}
}
