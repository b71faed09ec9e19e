package handlers

import (
	"context"
	"errors"

	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/notify"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// ChangeNotify handles the SMB2 CHANGE_NOTIFY command [MS-SMB2] 2.2.35, 2.2.36.
//
// **Purpose:**
//
// Places a one-shot watch on a directory handle. The request is answered
// at once with an interim STATUS_PENDING carrying an AsyncId; the final
// response is sent later through the connection's AsyncSender.
//
// **Completion:**
//
//   - a change: FILE_NOTIFY_INFORMATION records, or STATUS_NOTIFY_ENUM_DIR
//     with no data when they do not fit the client's buffer
//   - CANCEL, CLOSE of the handle, LOGOFF or disconnect: STATUS_CANCELLED
//
// Exactly one of these produces a response. The final response is held
// until the interim one has been written (see notify.Operation.Arm).
func (h *Handler) ChangeNotify(ctx *SMBHandlerContext, req *messages.ChangeNotifyRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}
	if !of.IsDir {
		return NewErrorResult(types.StatusInvalidParameter)
	}
	notifier, ok := of.Share.Notifier()
	if !ok || ctx.State.Async == nil {
		return NewErrorResult(types.StatusNotSupported)
	}

	limit := min(req.OutputBufferLength, h.Config.MaxTransactSize)
	state := ctx.State

	op := notify.NewOperation(notifier, func(op *notify.Operation, changes []store.Change, err error) {
		h.completeNotify(state, op, changes, err)
	})
	op.ConnID = state.ConnID
	op.SessionID = ctx.Session.ID
	op.TreeID = ctx.TreeID
	op.MessageID = ctx.Header.MessageID
	op.CreditCharge = ctx.Header.CreditCharge
	op.Credits = ctx.Header.Credits
	op.PersistentID = of.PersistentID
	op.VolatileID = of.VolatileID
	op.OutputBufferLength = limit

	asyncID := h.Notify.Register(op)

	// The watch outlives this request, so it must not inherit the
	// request's cancellation.
	token, err := notifier.NotifyChange(
		context.WithoutCancel(ctx.Context),
		of.Handle,
		storeNotifyFilter(req.CompletionFilter),
		req.WatchTree(),
		int(limit),
		h.Notify.Callback(op))
	if err != nil {
		h.Notify.Discard(op)
		logger.Debug("CHANGE_NOTIFY: watch failed",
			logger.KeyFileID, of.PersistentID, logger.KeyError, err)
		return errorResult(err)
	}
	op.SetToken(token)

	logger.Debug("CHANGE_NOTIFY pending",
		logger.KeyFileID, of.PersistentID,
		logger.KeyPath, of.Handle.Path(),
		logger.KeyAsyncID, asyncID,
		"filter", req.CompletionFilter,
		"watchTree", req.WatchTree())

	return &HandlerResult{
		Status:    types.StatusPending,
		AsyncID:   asyncID,
		AfterSend: op.Arm,
	}
}

// completeNotify builds and sends the final async response of op.
func (h *Handler) completeNotify(state *ConnectionState, op *notify.Operation, changes []store.Change, err error) {
	status := types.StatusSuccess
	var body messages.Response

	switch {
	case err == nil:
		buf, ok := fileinfo.EncodeNotifyRecords(notifyRecords(changes), int(op.OutputBufferLength))
		if !ok {
			status = types.StatusNotifyEnumDir
			buf = nil
		}
		body = messages.NewChangeNotifyResponse(buf)
	case errors.Is(err, store.ErrNotifyOverflow):
		status = types.StatusNotifyEnumDir
		body = messages.NewChangeNotifyResponse(nil)
	default:
		status = StoreErrorToStatus(err)
		body = &messages.ErrorResponse{Cmd: types.CommandChangeNotify}
	}

	if state.Closed() {
		return
	}

	rh := header.NewResponseHeader(types.CommandChangeNotify, status)
	rh.SetAsync(op.AsyncID)
	rh.MessageID = op.MessageID
	rh.SessionID = op.SessionID
	rh.CreditCharge = op.CreditCharge
	rh.Credits = max(1, op.Credits)

	data, encErr := body.Encode()
	if encErr != nil {
		logger.Error("CHANGE_NOTIFY encode", logger.KeyAsyncID, op.AsyncID, logger.KeyError, encErr)
		return
	}

	logger.Debug("CHANGE_NOTIFY complete",
		logger.KeyAsyncID, op.AsyncID,
		logger.KeyMessageID, op.MessageID,
		logger.KeyStatus, status.String(),
		logger.KeyCount, len(changes))

	if sendErr := state.Async.SendAsync(&Response{Header: rh, Body: data}); sendErr != nil {
		logger.Debug("CHANGE_NOTIFY send failed", logger.KeyAsyncID, op.AsyncID, logger.KeyError, sendErr)
	}
}
