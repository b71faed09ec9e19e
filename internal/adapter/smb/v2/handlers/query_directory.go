package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// QueryDirectory handles the SMB2 QUERY_DIRECTORY command [MS-SMB2] 2.2.33, 2.2.34.
//
// **Purpose:**
//
// Enumerates a directory handle. The listing is taken once per scan and
// kept on the handle; later requests continue where the previous one
// stopped until the listing is exhausted.
//
// **Process:**
//
//  1. Validate the handle (must be a directory) and the information class
//  2. Start a new scan on the first request, on RESTART_SCANS or REOPEN,
//     or when the pattern changes
//  3. Fill the output buffer with as many entries as fit; RETURN_SINGLE_ENTRY
//     stops after one
//  4. An empty first scan answers STATUS_NO_SUCH_FILE, an exhausted one
//     STATUS_NO_MORE_FILES
func (h *Handler) QueryDirectory(ctx *SMBHandlerContext, req *messages.QueryDirectoryRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}
	if !of.IsDir {
		return NewErrorResult(types.StatusInvalidParameter)
	}
	class := types.FileInfoClass(req.FileInformationClass)
	if !fileinfo.IsDirectoryClass(class) {
		return NewErrorResult(types.StatusInvalidInfoClass)
	}

	pattern := req.Pattern
	if pattern == "" {
		pattern = "*"
	}
	limit := int(min(req.OutputBufferLength, h.Config.MaxTransactSize))
	restart := req.Has(types.QueryRestartScans) || req.Has(types.QueryReopen)

	logger.Debug("QUERY_DIRECTORY request",
		logger.KeyFileID, of.PersistentID,
		logger.KeyPath, of.Handle.Path(),
		logger.KeyInfoClass, uint8(class),
		"pattern", pattern,
		"flags", req.Flags)

	var result *HandlerResult
	of.WithCursor(func(c *registry.Cursor) {
		first := false
		if !c.Started || restart || (req.Pattern != "" && pattern != c.Pattern) {
			entries, err := h.listDirectory(ctx, of, pattern)
			if err != nil {
				result = errorResult(err)
				return
			}
			c.Reset(pattern, entries)
			first = true
		}

		if c.Remaining() == 0 {
			if first {
				result = NewErrorResult(types.StatusNoSuchFile)
			} else {
				result = NewErrorResult(types.StatusNoMoreFiles)
			}
			return
		}

		list := fileinfo.NewDirectoryList(limit)
		for c.Remaining() > 0 {
			entry, err := fileinfo.EncodeDirEntry(class, dirEntry(&c.Entries[c.Next]))
			if err != nil {
				result = errorResult(err)
				return
			}
			if !list.Add(entry) {
				break
			}
			c.Next++
			if req.Has(types.QueryReturnSingleEntry) {
				break
			}
		}

		if list.Len() == 0 {
			// Not even one entry fits the client's buffer.
			result = NewErrorResult(types.StatusInfoLengthMismatch)
			return
		}
		result = NewResult(types.StatusSuccess, messages.NewQueryDirectoryResponse(list.Bytes()))
	})
	return result
}

// listDirectory returns the matching entries of the directory behind of,
// preceded by "." and ".." when the pattern matches them.
func (h *Handler) listDirectory(ctx *SMBHandlerContext, of *registry.OpenFile, pattern string) ([]store.FileInfo, error) {
	st := of.Share.Store
	children, err := st.QueryDirectory(ctx.Context, of.Handle, pattern)
	if err != nil {
		return nil, err
	}
	if !store.MatchPattern(pattern, ".") {
		return children, nil
	}

	self, err := st.GetFileInfo(ctx.Context, of.Handle)
	if err != nil {
		return nil, err
	}
	dot := *self
	dot.Name = "."
	dotdot := *self
	dotdot.Name = ".."

	entries := make([]store.FileInfo, 0, len(children)+2)
	entries = append(entries, dot, dotdot)
	return append(entries, children...), nil
}
