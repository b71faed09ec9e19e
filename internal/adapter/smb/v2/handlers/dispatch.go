package handlers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// ErrProtocolViolation is returned by Dispatch for commands that break
// negotiation ordering. The connection has been closed and no response is
// sent.
var ErrProtocolViolation = errors.New("smb2 protocol violation")

// Response is an encoded response ready for the transport.
type Response struct {
	Header *header.SMB2Header
	Body   []byte

	// AfterSend, when set, must run once the response has been written.
	AfterSend func()

	// FileID is the handle a CREATE produced. The compound splitter hands
	// it to related requests that follow.
	FileID messages.FileID
}

// Bytes returns the header followed by the body.
func (r *Response) Bytes() []byte {
	out := r.Header.Encode()
	return append(out, r.Body...)
}

// Dispatch routes one decoded request.
//
// **Ordering:**
//
//  1. Before NEGOTIATE only NEGOTIATE is accepted; anything else closes the connection.
//  2. A second NEGOTIATE closes the connection.
//  3. SESSION_SETUP, ECHO and CANCEL need no session. Everything else needs
//     one (STATUS_USER_SESSION_DELETED).
//  4. TREE_CONNECT and LOGOFF need no tree. Everything else needs one
//     (STATUS_NETWORK_NAME_DELETED).
//  5. Unknown or unimplemented commands get STATUS_NOT_SUPPORTED.
//
// **Returns:**
//   - (nil, ErrProtocolViolation) after closing state for an ordering violation
//   - (nil, nil) for CANCEL, which has no response
//   - a response whose header has been patched from hdr otherwise
func (h *Handler) Dispatch(ctx context.Context, state *ConnectionState, hdr *header.SMB2Header, req messages.Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("SMB2 handler panic",
				logger.KeyCommand, hdr.Command.String(),
				logger.KeyMessageID, hdr.MessageID,
				"panic", r,
				"stack", string(debug.Stack()))
			resp, err = h.buildResponse(hdr, NewErrorResult(types.StatusInternalError)), nil
		}
	}()

	result, err := h.route(ctx, state, hdr, req)
	if err != nil {
		logger.Warn("closing connection on protocol violation",
			logger.KeyClient, state.RemoteAddr,
			logger.KeyCommand, hdr.Command.String(),
			logger.KeyDialect, state.Dialect().String(),
			logger.KeyError, err)
		_ = state.Close()
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	resp = h.buildResponse(hdr, result)
	logger.DebugCtx(ctx, "SMB2 response",
		logger.KeyCommand, hdr.Command.String(),
		logger.KeyMessageID, hdr.MessageID,
		logger.KeyStatus, resp.Header.Status.String())
	return resp, nil
}

func (h *Handler) route(ctx context.Context, state *ConnectionState, hdr *header.SMB2Header, req messages.Request) (*HandlerResult, error) {
	hctx := &SMBHandlerContext{Context: ctx, State: state, Header: hdr}

	if !state.Negotiated() {
		neg, ok := req.(*messages.NegotiateRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %s before NEGOTIATE", ErrProtocolViolation, hdr.Command)
		}
		return h.Negotiate(hctx, neg), nil
	}

	// ========================================================================
	// Commands without a session
	// ========================================================================

	switch r := req.(type) {
	case *messages.NegotiateRequest:
		return nil, fmt.Errorf("%w: NEGOTIATE after dialect %s", ErrProtocolViolation, state.Dialect())
	case *messages.SessionSetupRequest:
		return h.SessionSetup(hctx, r), nil
	case *messages.EchoRequest:
		return h.Echo(hctx, r), nil
	case *messages.CancelRequest:
		h.Cancel(hctx, r)
		return nil, nil
	}

	// ========================================================================
	// Session scope
	// ========================================================================

	sess, ok := state.SMB2().Sessions.GetSession(hdr.SessionID)
	if !ok {
		logger.Debug("unknown session",
			logger.KeyCommand, hdr.Command.String(), logger.KeySessionID, hdr.SessionID)
		return NewErrorResult(types.StatusUserSessionDeleted), nil
	}
	hctx.Session = sess

	switch r := req.(type) {
	case *messages.TreeConnectRequest:
		return h.TreeConnect(hctx, r), nil
	case *messages.LogoffRequest:
		return h.Logoff(hctx, r), nil
	}

	// ========================================================================
	// Tree scope
	// ========================================================================

	share, ok := sess.GetConnectedTree(hdr.TreeID)
	if !ok {
		logger.Debug("unknown tree",
			logger.KeyCommand, hdr.Command.String(), logger.KeyTreeID, hdr.TreeID)
		return NewErrorResult(types.StatusNetworkNameDeleted), nil
	}
	hctx.TreeID = hdr.TreeID
	hctx.Share = share

	switch r := req.(type) {
	case *messages.TreeDisconnectRequest:
		return h.TreeDisconnect(hctx, r), nil
	case *messages.CreateRequest:
		return h.Create(hctx, r), nil
	case *messages.QueryInfoRequest:
		return h.QueryInfo(hctx, r), nil
	case *messages.SetInfoRequest:
		return h.SetInfo(hctx, r), nil
	case *messages.QueryDirectoryRequest:
		return h.QueryDirectory(hctx, r), nil
	case *messages.ReadRequest:
		return h.Read(hctx, r), nil
	case *messages.WriteRequest:
		return h.Write(hctx, r), nil
	case *messages.FlushRequest:
		return h.Flush(hctx, r), nil
	case *messages.CloseRequest:
		return h.Close(hctx, r), nil
	case *messages.IoctlRequest:
		return h.Ioctl(hctx, r), nil
	case *messages.ChangeNotifyRequest:
		return h.ChangeNotify(hctx, r), nil
	default:
		logger.Debug("unsupported command", logger.KeyCommand, hdr.Command.String())
		return NewErrorResult(types.StatusNotSupported), nil
	}
}

// DispatchMalformed answers a request whose body could not be decoded. The
// ordering, session and tree checks of Dispatch run on the header alone, so
// the client sees the same status a well-formed body would get. A request
// that passes them gets STATUS_INVALID_PARAMETER; a malformed CANCEL gets
// nothing.
func (h *Handler) DispatchMalformed(state *ConnectionState, hdr *header.SMB2Header, decodeErr error) (*Response, error) {
	result, err := h.admitMalformed(state, hdr)
	if err != nil {
		logger.Warn("closing connection on protocol violation",
			logger.KeyClient, state.RemoteAddr,
			logger.KeyCommand, hdr.Command.String(),
			logger.KeyDialect, state.Dialect().String(),
			logger.KeyError, err)
		_ = state.Close()
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	logger.Debug("malformed request",
		logger.KeyCommand, hdr.Command.String(),
		logger.KeyMessageID, hdr.MessageID,
		logger.KeyStatus, result.Status.String(),
		logger.KeyError, decodeErr)
	return h.buildResponse(hdr, result), nil
}

func (h *Handler) admitMalformed(state *ConnectionState, hdr *header.SMB2Header) (*HandlerResult, error) {
	negotiated := state.Negotiated()
	switch {
	case !negotiated && hdr.Command != types.CommandNegotiate:
		return nil, fmt.Errorf("%w: %s before NEGOTIATE", ErrProtocolViolation, hdr.Command)
	case negotiated && hdr.Command == types.CommandNegotiate:
		return nil, fmt.Errorf("%w: NEGOTIATE after dialect %s", ErrProtocolViolation, state.Dialect())
	}

	switch hdr.Command {
	case types.CommandNegotiate, types.CommandSessionSetup, types.CommandEcho:
		return NewErrorResult(types.StatusInvalidParameter), nil
	case types.CommandCancel:
		return nil, nil
	}

	sess, ok := state.SMB2().Sessions.GetSession(hdr.SessionID)
	if !ok {
		return NewErrorResult(types.StatusUserSessionDeleted), nil
	}
	switch hdr.Command {
	case types.CommandTreeConnect, types.CommandLogoff:
		return NewErrorResult(types.StatusInvalidParameter), nil
	}

	if _, ok := sess.GetConnectedTree(hdr.TreeID); !ok {
		return NewErrorResult(types.StatusNetworkNameDeleted), nil
	}
	return NewErrorResult(types.StatusInvalidParameter), nil
}

// Reject returns an error response to req with the given status. The
// transport uses it for requests whose body could not be decoded.
func (h *Handler) Reject(req *header.SMB2Header, status types.Status) *Response {
	return h.buildResponse(req, NewErrorResult(status))
}

// buildResponse encodes result and patches its header from the request.
func (h *Handler) buildResponse(req *header.SMB2Header, result *HandlerResult) *Response {
	rh := header.NewResponseHeader(req.Command, result.Status)
	rh.SessionID = result.SessionID
	rh.TreeID = result.TreeID
	if result.AsyncID != 0 {
		rh.SetAsync(result.AsyncID)
	}
	header.PatchResponse(rh, req)

	body, err := encodeBody(req.Command, result)
	if err != nil {
		logger.Error("encode response",
			logger.KeyCommand, req.Command.String(), logger.KeyError, err)
		rh.Status = types.StatusInternalError
		body, _ = (&messages.ErrorResponse{Cmd: req.Command}).Encode()
	}
	return &Response{Header: rh, Body: body, AfterSend: result.AfterSend, FileID: result.FileID}
}

func encodeBody(cmd types.Command, result *HandlerResult) ([]byte, error) {
	if result.Body == nil {
		return (&messages.ErrorResponse{Cmd: cmd}).Encode()
	}
	return result.Body.Encode()
}

// lookupOpen resolves a handle-scoped request's file ID in the session.
// A missing handle or a volatile ID mismatch is STATUS_FILE_CLOSED.
func (h *Handler) lookupOpen(ctx *SMBHandlerContext, fid messages.FileID) (*registry.OpenFile, *HandlerResult) {
	of, ok := ctx.Session.GetOpenFile(fid.Persistent)
	if !ok || of.VolatileID != fid.Volatile {
		logger.Debug("handle not open",
			logger.KeyCommand, ctx.Header.Command.String(),
			logger.KeyFileID, fid.Persistent)
		return nil, NewErrorResult(types.StatusFileClosed)
	}
	return of, nil
}

// CloseConnection tears down everything a connection owns: every session,
// every open file of those sessions and every pending change notification.
// It is called by the transport when the connection ends.
func (h *Handler) CloseConnection(ctx context.Context, state *ConnectionState) {
	if n := h.Notify.CancelConnection(state.ConnID); n > 0 {
		logger.Debug("cancelled pending notifications",
			logger.KeyConnectionID, state.ConnID, logger.KeyCount, n)
	}

	ext := state.SMB2()
	if ext == nil {
		return
	}
	for _, sess := range ext.Sessions.Sessions() {
		h.endSession(ctx, ext, sess.ID)
	}
}

// endSession removes a session and closes its open files.
func (h *Handler) endSession(ctx context.Context, ext *SMB2Extension, sessionID uint64) bool {
	sess, ok := ext.Sessions.RemoveSession(sessionID)
	if !ok {
		return false
	}
	h.sessions.Add(-1)
	if h.Auth != nil {
		h.Auth.Abandon(sessionID)
	}
	h.releaseOpens(ctx, h.Opens.CloseSession(sess))
	return true
}

// releaseOpens closes the store handles of files already removed from the
// registry.
func (h *Handler) releaseOpens(ctx context.Context, opens []*registry.OpenFile) {
	for _, of := range opens {
		if err := of.Share.Store.CloseFile(ctx, of.Handle); err != nil {
			logger.Debug("close store handle",
				logger.KeyFileID, of.PersistentID, logger.KeyPath, of.Path, logger.KeyError, err)
		}
	}
}
