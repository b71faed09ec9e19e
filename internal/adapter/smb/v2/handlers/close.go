package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// Close handles the SMB2 CLOSE command [MS-SMB2] 2.2.15, 2.2.16.
//
// **Process:**
//
//  1. Resolve the handle (STATUS_FILE_CLOSED when unknown)
//  2. With POSTQUERY_ATTRIB, read the final attributes while the handle is open
//  3. Remove the handle from both tables; pending change notifications on
//     it complete with STATUS_CANCELLED
//  4. Close the store handle, which applies delete-on-close
func (h *Handler) Close(ctx *SMBHandlerContext, req *messages.CloseRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}

	var fi *store.FileInfo
	if req.PostQueryAttrib() {
		var err error
		if fi, err = of.Share.Store.GetFileInfo(ctx.Context, of.Handle); err != nil {
			logger.Debug("CLOSE: post-query failed", logger.KeyFileID, of.PersistentID, logger.KeyError, err)
			fi = nil
		}
	}

	if _, ok := h.Opens.Close(ctx.Session, of.PersistentID); !ok {
		// A concurrent CLOSE or LOGOFF got there first.
		return NewErrorResult(types.StatusFileClosed)
	}
	if err := of.Share.Store.CloseFile(ctx.Context, of.Handle); err != nil {
		logger.Debug("CLOSE: store close failed", logger.KeyFileID, of.PersistentID, logger.KeyError, err)
		return errorResult(err)
	}

	logger.Debug("CLOSE", logger.KeyFileID, of.PersistentID, logger.KeyPath, of.Handle.Path())

	resp := &messages.CloseResponse{}
	if fi != nil {
		resp.Flags = types.ClosePostQueryAttrib
		resp.CreationTime = fi.CreationTime
		resp.LastAccessTime = fi.LastAccessTime
		resp.LastWriteTime = fi.LastWriteTime
		resp.ChangeTime = fi.ChangeTime
		resp.AllocationSize = allocationSize(fi)
		resp.EndOfFile = endOfFile(fi)
		resp.FileAttributes = FileAttributes(fi)
	}
	return NewResult(types.StatusSuccess, resp)
}
