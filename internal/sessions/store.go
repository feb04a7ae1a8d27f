package sessions

import (
	"fmt"
	"log/slog"
	"sync"
)

// Store is a session persistence backend.
type Store interface {
	// Load returns the stored session, or nil when none exists.
	Load(key string) (*Session, error)
	Save(s *Session) error
	// Delete removes a session, reporting whether it existed.
	Delete(key string) (bool, error)
	List() ([]Info, error)
	Close() error
}

// Open builds the store named by backend. dir is the sessions data
// directory.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return NewSQLiteStore(dir)
	default:
		return nil, fmt.Errorf("unknown sessions backend %q", backend)
	}
}

// Manager fronts a Store with an in-memory cache. The agent loop is the
// single writer; the mutex protects List/Delete racing the CLI.
type Manager struct {
	mu    sync.Mutex
	store Store
	cache map[string]*Session
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, cache: make(map[string]*Session)}
}

// GetOrCreate returns the cached session, loading from the store on first
// access. Load failures fall back to a fresh session so one corrupt file
// cannot wedge the conversation.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache[key]; ok {
		return s
	}
	s, err := m.store.Load(key)
	if err != nil {
		slog.Warn("failed to load session", "key", key, "error", err)
	}
	if s == nil {
		s = newSession(key)
	}
	m.cache[key] = s
	return s
}

// Save persists the cached session.
func (m *Manager) Save(key string) error {
	m.mu.Lock()
	s, ok := m.cache[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.store.Save(s)
}

// Delete removes a session from cache and store.
func (m *Manager) Delete(key string) (bool, error) {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
	return m.store.Delete(key)
}

// List returns stored sessions, most recently updated first.
func (m *Manager) List() ([]Info, error) {
	return m.store.List()
}

func (m *Manager) Close() error {
	return m.store.Close()
}
