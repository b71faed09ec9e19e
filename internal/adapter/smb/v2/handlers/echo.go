package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Echo handles the SMB2 ECHO command [MS-SMB2] 2.2.28. It needs no
// session and always succeeds.
func (h *Handler) Echo(_ *SMBHandlerContext, _ *messages.EchoRequest) *HandlerResult {
	return NewResult(types.StatusSuccess, &messages.EchoResponse{})
}

// Cancel handles the SMB2 CANCEL command [MS-SMB2] 2.2.30. CANCEL has no
// response of its own; a cancelled operation completes with
// STATUS_CANCELLED through its async response.
//
// An async-flagged CANCEL names the operation by AsyncId. Otherwise the
// MessageId of the original request is used. Either way only operations
// started on the same connection can be cancelled.
func (h *Handler) Cancel(ctx *SMBHandlerContext, _ *messages.CancelRequest) {
	var cancelled bool
	if ctx.Header.IsAsync() {
		cancelled = h.Notify.Cancel(ctx.State.ConnID, ctx.Header.AsyncID)
	} else {
		cancelled = h.Notify.CancelByMessageID(ctx.State.ConnID, ctx.Header.MessageID)
	}

	logger.Debug("CANCEL",
		logger.KeyMessageID, ctx.Header.MessageID,
		logger.KeyAsyncID, ctx.Header.AsyncID,
		"cancelled", cancelled)
}
