package registry

import (
	"math"
	"sync"

	"github.com/marmos91/dittosmb/internal/logger"
)

// MaxPersistentID is the largest allocatable persistent file ID. The
// all-ones value is reserved, as is 0.
const MaxPersistentID = math.MaxUint64 - 1

// HandleCanceller completes the pending asynchronous operations of a handle
// that is about to close. It returns the number of operations cancelled.
type HandleCanceller interface {
	CancelHandle(persistentID uint64) int
}

// OpenTable is the server-wide index of open files, keyed by persistent ID.
// It also allocates persistent IDs.
//
// An allocated ID is held as a reservation until Register fills it or
// Release drops it. Reservations block reuse of the ID but are invisible to
// Lookup and Len.
//
// Thread safety: all methods are safe for concurrent use.
type OpenTable struct {
	mu      sync.Mutex
	next    uint64
	limit   uint64
	entries map[uint64]*OpenFile // nil value marks a reservation
	open    int

	canceller HandleCanceller
}

// NewOpenTable returns a table allocating from the whole persistent ID space.
func NewOpenTable() *OpenTable {
	return NewOpenTableWithLimit(0)
}

// NewOpenTableWithLimit returns a table allocating IDs 1..limit, which
// caps the number of handles open at once. A zero limit means the whole
// space up to MaxPersistentID.
func NewOpenTableWithLimit(limit uint64) *OpenTable {
	if limit == 0 || limit > MaxPersistentID {
		limit = MaxPersistentID
	}
	return &OpenTable{
		next:    1,
		limit:   limit,
		entries: make(map[uint64]*OpenFile),
	}
}

// SetCanceller installs the hook Close runs before removing a handle.
func (t *OpenTable) SetCanceller(c HandleCanceller) {
	t.mu.Lock()
	t.canceller = c
	t.mu.Unlock()
}

// Allocate reserves and returns the first free persistent ID at or after
// the table's counter, wrapping past the limit back to 1.
func (t *OpenTable) Allocate() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if uint64(len(t.entries)) >= t.limit {
		return 0, ErrHandleSpaceExhausted
	}

	id := t.next
	for {
		if id == 0 || id > t.limit {
			id = 1
		}
		if _, used := t.entries[id]; !used {
			break
		}
		id++
	}

	t.entries[id] = nil
	t.next = id + 1
	return id, nil
}

// Release drops a reservation that will not be registered. Registered IDs
// are left alone.
func (t *OpenTable) Release(persistentID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if of, ok := t.entries[persistentID]; ok && of == nil {
		delete(t.entries, persistentID)
	}
}

// Register fills the reservation for persistentID with of and adds it to the
// session. On error the reservation is released.
func (t *OpenTable) Register(s *Session, persistentID, volatileID uint64, of *OpenFile) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.entries[persistentID]; !ok || cur != nil {
		return ErrNotReserved
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		delete(t.entries, persistentID)
		return ErrSessionClosed
	}

	of.PersistentID = persistentID
	of.VolatileID = volatileID
	of.SessionID = s.ID

	t.entries[persistentID] = of
	t.open++
	s.opens[persistentID] = of
	return nil
}

// Lookup finds an open file server-wide.
func (t *OpenTable) Lookup(persistentID uint64) (*OpenFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	of := t.entries[persistentID]
	return of, of != nil
}

// Close removes the session's open file from both tables and returns it.
// Pending asynchronous operations on the handle are cancelled first. The
// store handle is left for the caller to close.
func (t *OpenTable) Close(s *Session, persistentID uint64) (*OpenFile, bool) {
	if _, ok := s.GetOpenFile(persistentID); !ok {
		return nil, false
	}

	t.mu.Lock()
	canceller := t.canceller
	t.mu.Unlock()
	if canceller != nil {
		if n := canceller.CancelHandle(persistentID); n > 0 {
			logger.Debug("cancelled pending operations on close",
				logger.KeyFileID, persistentID, logger.KeyCount, n)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	of, ok := s.opens[persistentID]
	if !ok {
		// Lost a race with a concurrent Close.
		return nil, false
	}
	delete(s.opens, persistentID)
	if t.entries[persistentID] == of {
		delete(t.entries, persistentID)
		t.open--
	}
	return of, true
}

// CloseTree closes every open file the session has on treeID.
func (t *OpenTable) CloseTree(s *Session, treeID uint32) []*OpenFile {
	var closed []*OpenFile
	for _, of := range s.OpenFiles() {
		if of.TreeID != treeID {
			continue
		}
		if removed, ok := t.Close(s, of.PersistentID); ok {
			closed = append(closed, removed)
		}
	}
	return closed
}

// CloseSession closes every open file of the session.
func (t *OpenTable) CloseSession(s *Session) []*OpenFile {
	var closed []*OpenFile
	for _, of := range s.OpenFiles() {
		if removed, ok := t.Close(s, of.PersistentID); ok {
			closed = append(closed, removed)
		}
	}
	return closed
}

// Len returns the number of registered open files.
func (t *OpenTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}
