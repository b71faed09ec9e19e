package registry

import (
	"sort"
	"sync"
	"sync/atomic"
)

// SessionTable holds the sessions of one connection.
//
// Thread safety: all methods are safe for concurrent use.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   atomic.Uint64
}

// NewSessionTable returns an empty table. Session IDs start at 1.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[uint64]*Session)}
}

// NextSessionID reserves a session ID. It is used before authentication
// completes, when the ID must already be returned to the client.
func (t *SessionTable) NextSessionID() uint64 {
	for {
		if id := t.nextID.Add(1); id != 0 && id != ^uint64(0) {
			return id
		}
	}
}

// CreateSession stores a new session under id.
func (t *SessionTable) CreateSession(id uint64, ident Identity, clientAddr string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.sessions[id]; exists {
		return nil, ErrSessionExists
	}
	s := newSession(id, ident, clientAddr)
	t.sessions[id] = s
	return s, nil
}

// GetSession returns the session with the given ID.
func (t *SessionTable) GetSession(id uint64) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// RemoveSession drops the session and marks it closed, so no new handles
// can be registered on it. Its open files remain registered until the
// caller runs OpenTable.CloseSession.
func (t *SessionTable) RemoveSession(id uint64) (*Session, bool) {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	t.mu.Unlock()

	if ok {
		s.markClosed()
	}
	return s, ok
}

// Sessions returns every session, ordered by ID.
func (t *SessionTable) Sessions() []*Session {
	t.mu.RLock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
