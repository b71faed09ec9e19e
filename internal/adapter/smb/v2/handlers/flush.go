package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Flush handles the SMB2 FLUSH command [MS-SMB2] 2.2.17, 2.2.18.
//
// The handle is looked up by persistent ID in the session. A handle that
// is not open answers STATUS_FILE_CLOSED; otherwise the store flushes it
// to stable storage.
func (h *Handler) Flush(ctx *SMBHandlerContext, req *messages.FlushRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}

	if err := of.Share.Store.FlushFile(ctx.Context, of.Handle); err != nil {
		logger.Debug("FLUSH failed", logger.KeyFileID, of.PersistentID, logger.KeyError, err)
		return errorResult(err)
	}
	return NewResult(types.StatusSuccess, &messages.FlushResponse{})
}
