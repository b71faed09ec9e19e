package handlers

import (
	"errors"
	"io"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Read handles the SMB2 READ command [MS-SMB2] 2.2.19, 2.2.20.
//
// **Process:**
//
//  1. Resolve the handle; directories cannot be read
//  2. Reject lengths above MaxReadSize
//  3. Read through the store
//  4. A read at or past end of file, or one shorter than MinimumCount,
//     answers STATUS_END_OF_FILE
func (h *Handler) Read(ctx *SMBHandlerContext, req *messages.ReadRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}
	if of.IsDir {
		return NewErrorResult(types.StatusInvalidDeviceRequest)
	}
	if req.Length > h.Config.MaxReadSize {
		logger.Debug("READ: length above max read size",
			logger.KeyFileID, of.PersistentID, "length", req.Length)
		return NewErrorResult(types.StatusInvalidParameter)
	}

	data, err := of.Share.Store.ReadFile(ctx.Context, of.Handle, int64(req.Offset), int(req.Length))
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Debug("READ failed", logger.KeyFileID, of.PersistentID, logger.KeyError, err)
		return errorResult(err)
	}
	if len(data) == 0 && req.Length > 0 {
		return NewErrorResult(types.StatusEndOfFile)
	}
	if uint32(len(data)) < req.MinimumCount {
		return NewErrorResult(types.StatusEndOfFile)
	}

	logger.Debug("READ",
		logger.KeyFileID, of.PersistentID,
		logger.KeyOffset, req.Offset,
		logger.KeyBytesRead, len(data))

	return NewResult(types.StatusSuccess, &messages.ReadResponse{Data: data})
}
