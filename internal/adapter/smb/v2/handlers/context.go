// Package handlers implements the SMB2 command dispatcher and the
// per-command handlers.
//
// Dispatch enforces protocol ordering (negotiate, then session, then tree)
// and turns every handler outcome into a response whose header has been
// patched from the request. Handlers work against the registry tables and
// the share's store.Store.
package handlers

import (
	"context"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

// SMBHandlerContext carries per-request state through the handlers. The
// dispatcher fills Session and Share as far as the ordering checks got.
type SMBHandlerContext struct {
	Context context.Context

	State  *ConnectionState
	Header *header.SMB2Header

	// Session is nil for NEGOTIATE, SESSION_SETUP and ECHO.
	Session *registry.Session

	// TreeID and Share are zero until the tree lookup succeeded.
	TreeID uint32
	Share  *registry.Share
}

// HandlerResult is what a handler returns to the dispatcher.
type HandlerResult struct {
	Status types.Status

	// Body is the response body. A nil Body with an error status is sent
	// as an SMB2 ERROR response.
	Body messages.Response

	// SessionID overrides the response header's session ID. SESSION_SETUP
	// uses it to hand out the new ID.
	SessionID uint64

	// TreeID overrides the response header's tree ID.
	TreeID uint32

	// AsyncID marks an interim STATUS_PENDING response.
	AsyncID uint64

	// AfterSend runs once the response has been written.
	AfterSend func()

	// FileID is the handle a CREATE produced, used by related compound
	// requests that follow.
	FileID messages.FileID
}

// NewResult returns a result with a body.
func NewResult(status types.Status, body messages.Response) *HandlerResult {
	return &HandlerResult{Status: status, Body: body}
}

// NewErrorResult returns a bodyless result; the dispatcher sends it as an
// ERROR response.
func NewErrorResult(status types.Status) *HandlerResult {
	return &HandlerResult{Status: status}
}
