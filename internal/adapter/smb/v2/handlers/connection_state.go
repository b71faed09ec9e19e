package handlers

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// ErrAlreadyNegotiated is returned by Upgrade on a connection whose dialect
// is already set.
var ErrAlreadyNegotiated = errors.New("connection already negotiated")

// AsyncSender writes a response outside the request/response loop. The
// connection implements it so change notifications can complete later.
type AsyncSender interface {
	SendAsync(resp *Response) error
}

// SMB2Extension is the per-connection state that exists once a dialect has
// been negotiated.
type SMB2Extension struct {
	Dialect    types.Dialect
	ClientGUID uuid.UUID

	// Allocate reserves a persistent file ID in the server-wide open table.
	Allocate func() (uint64, error)

	Sessions *registry.SessionTable
}

// ConnectionState is the state of one TCP connection.
//
// The dialect moves from DialectNotSet to a negotiated value exactly once,
// through Upgrade. Close is idempotent.
//
// Thread safety: the connection goroutine owns the state, but Dialect, SMB2
// and Closed may be read from async completion goroutines.
type ConnectionState struct {
	ConnID     uint64
	RemoteAddr string
	Logger     *slog.Logger

	// Async delivers change-notify completions. Nil disables async
	// completion; CHANGE_NOTIFY then answers STATUS_NOT_SUPPORTED.
	Async AsyncSender

	mu      sync.RWMutex
	dialect types.Dialect
	smb2    *SMB2Extension

	closer    io.Closer
	closeOnce sync.Once
	closed    bool
}

// NewConnectionState returns an un-negotiated connection state. closer is
// the transport to shut down on a protocol violation.
func NewConnectionState(connID uint64, remoteAddr string, closer io.Closer, log *slog.Logger) *ConnectionState {
	if log == nil {
		log = slog.Default()
	}
	return &ConnectionState{
		ConnID:     connID,
		RemoteAddr: remoteAddr,
		Logger:     log,
		closer:     closer,
	}
}

// Dialect returns the negotiated dialect, or DialectNotSet.
func (c *ConnectionState) Dialect() types.Dialect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dialect
}

// Negotiated reports whether a dialect has been set.
func (c *ConnectionState) Negotiated() bool {
	return c.Dialect() != types.DialectNotSet
}

// SMB2 returns the negotiated extension, or nil before NEGOTIATE.
func (c *ConnectionState) SMB2() *SMB2Extension {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.smb2
}

// Upgrade records the negotiated dialect and installs ext.
func (c *ConnectionState) Upgrade(ext *SMB2Extension) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialect != types.DialectNotSet {
		return ErrAlreadyNegotiated
	}
	if ext.Sessions == nil {
		ext.Sessions = registry.NewSessionTable()
	}
	c.dialect = ext.Dialect
	c.smb2 = ext
	return nil
}

// Close shuts the transport down. Only the first call has an effect.
func (c *ConnectionState) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if c.closer != nil {
			err = c.closer.Close()
		}
	})
	return err
}

// Closed reports whether Close has been called.
func (c *ConnectionState) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
