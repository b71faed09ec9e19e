package notify

import (
	"sync"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

type messageKey struct {
	connID    uint64
	messageID uint64
}

// Registry indexes pending operations by async ID, by message ID and by the
// persistent ID of the watched handle. Async IDs are unique server-wide.
//
// Completed operations are dropped from every index before their sink runs.
//
// Thread safety: all methods are safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	nextAsyncID uint64
	ops         map[uint64]*Operation
	byMessage   map[messageKey]*Operation
	byHandle    map[uint64]map[uint64]*Operation

	// OnChange, when set, is called with the pending count after every
	// change. It runs outside the registry lock.
	OnChange func(pending int)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ops:       make(map[uint64]*Operation),
		byMessage: make(map[messageKey]*Operation),
		byHandle:  make(map[uint64]map[uint64]*Operation),
	}
}

// Register assigns op an async ID and indexes it. The returned ID is what
// the interim STATUS_PENDING response carries.
func (r *Registry) Register(op *Operation) uint64 {
	r.mu.Lock()
	r.nextAsyncID++
	if r.nextAsyncID == 0 {
		r.nextAsyncID = 1
	}
	id := r.nextAsyncID

	op.AsyncID = id
	op.mu.Lock()
	op.onDone = r.remove
	op.mu.Unlock()

	r.ops[id] = op
	r.byMessage[messageKey{op.ConnID, op.MessageID}] = op
	handleOps := r.byHandle[op.PersistentID]
	if handleOps == nil {
		handleOps = make(map[uint64]*Operation)
		r.byHandle[op.PersistentID] = handleOps
	}
	handleOps[id] = op
	n := len(r.ops)
	r.mu.Unlock()

	logger.Debug("notify: registered",
		logger.KeyAsyncID, id, logger.KeyMessageID, op.MessageID, logger.KeyFileID, op.PersistentID)
	r.changed(n)
	return id
}

// Callback adapts op to the store's completion signature.
func (r *Registry) Callback(op *Operation) store.CompletionFunc {
	return func(changes []store.Change, err error) {
		op.complete(changes, err)
	}
}

// Complete fires the operation with the given outcome. It is a no-op for
// unknown or already completed operations.
func (r *Registry) Complete(asyncID uint64, changes []store.Change, err error) bool {
	op, ok := r.get(asyncID)
	if !ok {
		return false
	}
	return op.complete(changes, err)
}

// Cancel cancels the pending operation with the given async ID on the
// given connection. It reports false when the operation is unknown,
// belongs to another connection or has already completed.
func (r *Registry) Cancel(connID, asyncID uint64) bool {
	op, ok := r.get(asyncID)
	if !ok || op.ConnID != connID {
		return false
	}
	return op.cancel()
}

// CancelByMessageID cancels the pending operation started by a request
// with the given message ID on the given connection.
func (r *Registry) CancelByMessageID(connID, messageID uint64) bool {
	r.mu.Lock()
	op, ok := r.byMessage[messageKey{connID, messageID}]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return op.cancel()
}

// CancelHandle cancels every pending operation on the handle and returns
// how many were cancelled. It satisfies registry.HandleCanceller.
func (r *Registry) CancelHandle(persistentID uint64) int {
	r.mu.Lock()
	victims := make([]*Operation, 0, len(r.byHandle[persistentID]))
	for _, op := range r.byHandle[persistentID] {
		victims = append(victims, op)
	}
	r.mu.Unlock()

	n := 0
	for _, op := range victims {
		if op.cancel() {
			n++
		}
	}
	return n
}

// CancelConnection cancels every pending operation of a connection.
func (r *Registry) CancelConnection(connID uint64) int {
	r.mu.Lock()
	var victims []*Operation
	for _, op := range r.ops {
		if op.ConnID == connID {
			victims = append(victims, op)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, op := range victims {
		if op.cancel() {
			n++
		}
	}
	return n
}

// Lookup returns a pending operation by async ID.
func (r *Registry) Lookup(asyncID uint64) (*Operation, bool) {
	return r.get(asyncID)
}

// Pending returns the number of pending operations.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func (r *Registry) get(asyncID uint64) (*Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[asyncID]
	return op, ok
}

func (r *Registry) remove(op *Operation) {
	r.mu.Lock()
	if r.ops[op.AsyncID] != op {
		r.mu.Unlock()
		return
	}
	delete(r.ops, op.AsyncID)
	key := messageKey{op.ConnID, op.MessageID}
	if r.byMessage[key] == op {
		delete(r.byMessage, key)
	}
	if handleOps := r.byHandle[op.PersistentID]; handleOps != nil {
		delete(handleOps, op.AsyncID)
		if len(handleOps) == 0 {
			delete(r.byHandle, op.PersistentID)
		}
	}
	n := len(r.ops)
	r.mu.Unlock()

	r.changed(n)
}

func (r *Registry) changed(n int) {
	if r.OnChange != nil {
		r.OnChange(n)
	}
}

// Discard drops an operation whose store watch could not be placed. Its
// sink never runs.
func (r *Registry) Discard(op *Operation) {
	if op.fired.CompareAndSwap(false, true) {
		r.remove(op)
	}
}
