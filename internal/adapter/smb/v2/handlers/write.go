package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Write handles the SMB2 WRITE command [MS-SMB2] 2.2.21, 2.2.22.
//
// Directories answer STATUS_INVALID_DEVICE_REQUEST and read-only shares
// STATUS_ACCESS_DENIED. Payloads above MaxWriteSize are rejected with
// STATUS_INVALID_PARAMETER. WRITE_THROUGH flushes after the write.
func (h *Handler) Write(ctx *SMBHandlerContext, req *messages.WriteRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}
	if of.IsDir {
		return NewErrorResult(types.StatusInvalidDeviceRequest)
	}
	if ctx.Share.ReadOnly {
		return NewErrorResult(types.StatusAccessDenied)
	}
	if uint64(len(req.Data)) > uint64(h.Config.MaxWriteSize) {
		return NewErrorResult(types.StatusInvalidParameter)
	}

	st := of.Share.Store
	n, err := st.WriteFile(ctx.Context, of.Handle, int64(req.Offset), req.Data)
	if err != nil {
		logger.Debug("WRITE failed", logger.KeyFileID, of.PersistentID, logger.KeyError, err)
		return errorResult(err)
	}
	if req.Flags&types.WriteFlagWriteThrough != 0 {
		if err := st.FlushFile(ctx.Context, of.Handle); err != nil {
			return errorResult(err)
		}
	}

	logger.Debug("WRITE",
		logger.KeyFileID, of.PersistentID,
		logger.KeyOffset, req.Offset,
		logger.KeyBytesWritten, n)

	return NewResult(types.StatusSuccess, &messages.WriteResponse{Count: uint32(n)})
}
