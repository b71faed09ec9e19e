package registry

import (
	"sync"

	"github.com/marmos91/dittosmb/pkg/store"
)

// OpenFile is one open handle. The ID fields are set by OpenTable.Register
// and never change afterwards.
type OpenFile struct {
	PersistentID uint64
	VolatileID   uint64
	SessionID    uint64
	TreeID       uint32

	Share         *Share
	Path          string
	Handle        store.Handle
	IsDir         bool
	DesiredAccess uint32

	mu     sync.Mutex
	cursor Cursor
}

// Cursor is the directory enumeration state of an open directory.
type Cursor struct {
	// Started is false until the first QUERY_DIRECTORY on the handle.
	Started bool
	Pattern string
	Entries []store.FileInfo
	Next    int
}

// Remaining is the number of entries not yet returned.
func (c *Cursor) Remaining() int {
	if c.Next >= len(c.Entries) {
		return 0
	}
	return len(c.Entries) - c.Next
}

// Reset replaces the listing and rewinds.
func (c *Cursor) Reset(pattern string, entries []store.FileInfo) {
	c.Started = true
	c.Pattern = pattern
	c.Entries = entries
	c.Next = 0
}

// WithCursor runs fn with exclusive access to the enumeration cursor.
func (o *OpenFile) WithCursor(fn func(c *Cursor)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.cursor)
}

// ShareName returns the name of the share the handle was opened on.
func (o *OpenFile) ShareName() string {
	if o.Share == nil {
		return ""
	}
	return o.Share.Name
}
