// Package notify tracks pending asynchronous CHANGE_NOTIFY requests.
//
// Each request becomes an Operation with a single-fire completion. The
// store's completion callback, an explicit CANCEL and the close of the
// watched handle all race to fire it; exactly one wins and the others are
// no-ops.
package notify

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// Sink delivers the outcome of an operation to the client. err is nil on
// success, store.ErrCancelled after a cancel, or the store's error.
type Sink func(op *Operation, changes []store.Change, err error)

// Operation is one pending CHANGE_NOTIFY.
type Operation struct {
	// Set by Registry.Register.
	AsyncID uint64

	ConnID       uint64
	SessionID    uint64
	TreeID       uint32
	MessageID    uint64
	PersistentID uint64
	VolatileID   uint64

	// CreditCharge and Credits are copied from the request header so the
	// final response is patched like any other.
	CreditCharge uint16
	Credits      uint16

	// OutputBufferLength is the client's limit on the encoded records.
	OutputBufferLength uint32

	sink     Sink
	notifier store.Notifier

	fired     atomic.Bool
	cancelled atomic.Bool

	mu       sync.Mutex
	token    store.Token
	hasToken bool
	armed    bool
	deferred *outcome
	onDone   func(*Operation)
}

type outcome struct {
	changes []store.Change
	err     error
}

// NewOperation returns an operation that reports through sink. notifier is
// the store the watch is placed on.
func NewOperation(notifier store.Notifier, sink Sink) *Operation {
	return &Operation{notifier: notifier, sink: sink}
}

// Done reports whether the operation has completed or been cancelled.
func (op *Operation) Done() bool { return op.fired.Load() }

// Cancelled reports whether the operation ended through cancellation.
func (op *Operation) Cancelled() bool { return op.cancelled.Load() }

// SetToken records the store token once NotifyChange has accepted the
// watch. If the operation was cancelled in the meantime the store watch is
// cancelled right away.
func (op *Operation) SetToken(token store.Token) {
	op.mu.Lock()
	op.token = token
	op.hasToken = true
	op.mu.Unlock()

	if op.cancelled.Load() {
		op.cancelWatch()
	}
}

// Arm allows the sink to run. The connection arms an operation after the
// interim STATUS_PENDING response has been written, so the final response
// can never overtake it. An outcome that arrived earlier is delivered now.
func (op *Operation) Arm() {
	op.mu.Lock()
	op.armed = true
	d := op.deferred
	op.deferred = nil
	op.mu.Unlock()

	if d != nil {
		op.deliver(d.changes, d.err)
	}
}

// complete fires the operation with a store outcome. It reports whether
// this call won the race.
func (op *Operation) complete(changes []store.Change, err error) bool {
	if !op.fired.CompareAndSwap(false, true) {
		return false
	}
	op.finish(changes, err)
	return true
}

// cancel fires the operation with store.ErrCancelled and withdraws the
// store watch.
func (op *Operation) cancel() bool {
	if !op.fired.CompareAndSwap(false, true) {
		return false
	}
	op.cancelled.Store(true)
	op.cancelWatch()
	op.finish(nil, store.ErrCancelled)
	return true
}

func (op *Operation) cancelWatch() {
	op.mu.Lock()
	token, ok := op.token, op.hasToken
	op.mu.Unlock()
	if !ok || op.notifier == nil {
		return
	}
	// ErrNotFound means the store already fired the watch.
	if err := op.notifier.Cancel(token); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Debug("notify: store cancel failed",
			logger.KeyAsyncID, op.AsyncID, logger.KeyError, err)
	}
}

func (op *Operation) finish(changes []store.Change, err error) {
	op.mu.Lock()
	done := op.onDone
	if !op.armed {
		op.deferred = &outcome{changes: changes, err: err}
		op.mu.Unlock()
		if done != nil {
			done(op)
		}
		return
	}
	op.mu.Unlock()

	if done != nil {
		done(op)
	}
	op.deliver(changes, err)
}

func (op *Operation) deliver(changes []store.Change, err error) {
	if op.sink != nil {
		op.sink(op, changes, err)
	}
}
