package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Identity describes who a session was established for.
type Identity struct {
	Username string
	Domain   string
	Guest    bool
	// Anonymous is set for null sessions.
	Anonymous bool
}

// Session is an authenticated principal on one connection. It owns the
// session's tree connections and open files.
//
// Thread safety: all methods are safe for concurrent use.
type Session struct {
	ID         uint64
	Identity   Identity
	ClientAddr string
	CreatedAt  time.Time

	mu         sync.RWMutex
	trees      map[uint32]*Share
	opens      map[uint64]*OpenFile
	nextTreeID uint32
	closed     bool

	nextVolatileID atomic.Uint64
}

func newSession(id uint64, ident Identity, clientAddr string) *Session {
	return &Session{
		ID:         id,
		Identity:   ident,
		ClientAddr: clientAddr,
		CreatedAt:  time.Now(),
		trees:      make(map[uint32]*Share),
		opens:      make(map[uint64]*OpenFile),
		nextTreeID: 1,
	}
}

// =============================================================================
// Tree connections
// =============================================================================

// NextTreeID returns a tree ID not currently connected in this session.
// Tree IDs start at 1; 0 and 0xFFFFFFFF are never returned.
func (s *Session) NextTreeID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := s.nextTreeID
		s.nextTreeID++
		if id == 0 || id == ^uint32(0) {
			continue
		}
		if _, used := s.trees[id]; !used {
			return id
		}
	}
}

// ConnectTree binds treeID to share.
func (s *Session) ConnectTree(treeID uint32, share *Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, exists := s.trees[treeID]; exists {
		return ErrTreeExists
	}
	s.trees[treeID] = share
	return nil
}

// GetConnectedTree returns the share bound to treeID.
func (s *Session) GetConnectedTree(treeID uint32) (*Share, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.trees[treeID]
	return share, ok
}

// RemoveConnectedTree unbinds treeID. Open files on the tree are not
// touched; use OpenTable.CloseTree for that.
func (s *Session) RemoveConnectedTree(treeID uint32) (*Share, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.trees[treeID]
	if ok {
		delete(s.trees, treeID)
	}
	return share, ok
}

// TreeCount returns the number of connected trees.
func (s *Session) TreeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trees)
}

// =============================================================================
// Open files
// =============================================================================

// GetOpenFile returns the session's open file with the given persistent ID.
func (s *Session) GetOpenFile(persistentID uint64) (*OpenFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	of, ok := s.opens[persistentID]
	return of, ok
}

// OpenFiles returns the session's open files ordered by persistent ID.
func (s *Session) OpenFiles() []*OpenFile {
	s.mu.RLock()
	out := make([]*OpenFile, 0, len(s.opens))
	for _, of := range s.opens {
		out = append(out, of)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PersistentID < out[j].PersistentID })
	return out
}

// NextVolatileID returns a fresh volatile ID for a handle opened in this
// session.
func (s *Session) NextVolatileID() uint64 {
	return s.nextVolatileID.Add(1)
}

// Closed reports whether the session was removed from its table.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
