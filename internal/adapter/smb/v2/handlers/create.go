package handlers

import (
	"errors"

	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// Create handles the SMB2 CREATE command [MS-SMB2] 2.2.13, 2.2.14.
//
// **Purpose:**
//
// Opens or creates a file or directory on the tree's share and registers
// the resulting handle in the session and the server-wide open table.
//
// **Process:**
//
//  1. Validate the disposition and the directory/non-directory options
//  2. Enforce read-only shares
//  3. Reserve a persistent ID (STATUS_INSUFFICIENT_RESOURCES when exhausted)
//  4. Open through the store
//  5. Register the handle with a fresh volatile ID
//  6. Report times, sizes and attributes
//
// Oplocks and create contexts are never granted.
func (h *Handler) Create(ctx *SMBHandlerContext, req *messages.CreateRequest) *HandlerResult {
	logger.Debug("CREATE request",
		logger.KeySessionID, ctx.Session.ID,
		logger.KeyTreeID, ctx.TreeID,
		logger.KeyPath, req.Name,
		"disposition", uint32(req.CreateDisposition),
		"options", req.CreateOptions,
		"access", req.DesiredAccess)

	// ========================================================================
	// Step 1: Validate the request
	// ========================================================================

	if !req.CreateDisposition.Valid() {
		return NewErrorResult(types.StatusInvalidParameter)
	}
	directory := req.CreateOptions&types.FileDirectoryFile != 0
	nonDirectory := req.CreateOptions&types.FileNonDirectoryFile != 0
	if directory && nonDirectory {
		return NewErrorResult(types.StatusInvalidParameter)
	}
	deleteOnClose := req.CreateOptions&types.FileDeleteOnClose != 0
	write := req.DesiredAccess&types.WriteAccessMask != 0

	// ========================================================================
	// Step 2: Read-only shares
	// ========================================================================

	disposition := req.CreateDisposition
	if ctx.Share.ReadOnly {
		if write || deleteOnClose || (disposition != types.FileOpen && disposition != types.FileOpenIf) {
			return NewErrorResult(types.StatusAccessDenied)
		}
		// Opening is allowed, creating is not.
		disposition = types.FileOpen
	}

	// ========================================================================
	// Step 3: Reserve a persistent ID
	// ========================================================================

	persistentID, err := ctx.State.SMB2().Allocate()
	if err != nil {
		logger.Warn("CREATE: persistent id allocation failed", logger.KeyError, err)
		return errorResult(err)
	}

	// ========================================================================
	// Step 4: Open through the store
	// ========================================================================

	st := ctx.Share.Store
	handle, result, err := st.CreateFile(ctx.Context, store.CreateRequest{
		Path:          req.Name,
		Disposition:   storeDisposition(disposition),
		Directory:     directory,
		NonDirectory:  nonDirectory,
		DeleteOnClose: deleteOnClose,
		Attributes:    req.FileAttributes,
		Write:         write,
	})
	if err != nil {
		h.Opens.Release(persistentID)
		if ctx.Share.ReadOnly && req.CreateDisposition == types.FileOpenIf && errors.Is(err, store.ErrNotFound) {
			return NewErrorResult(types.StatusAccessDenied)
		}
		logger.Debug("CREATE failed", logger.KeyPath, req.Name, logger.KeyError, err)
		return errorResult(err)
	}

	// ========================================================================
	// Step 5: Register the handle
	// ========================================================================

	of := &registry.OpenFile{
		TreeID:        ctx.TreeID,
		Share:         ctx.Share,
		Path:          handle.Path(),
		Handle:        handle,
		IsDir:         handle.IsDir(),
		DesiredAccess: req.DesiredAccess,
	}
	volatileID := ctx.Session.NextVolatileID()
	if err := h.Opens.Register(ctx.Session, persistentID, volatileID, of); err != nil {
		_ = st.CloseFile(ctx.Context, handle)
		logger.Debug("CREATE: register failed", logger.KeyError, err)
		if errors.Is(err, registry.ErrSessionClosed) {
			return NewErrorResult(types.StatusUserSessionDeleted)
		}
		return NewErrorResult(types.StatusInternalError)
	}

	// ========================================================================
	// Step 6: Build the response
	// ========================================================================

	fi := &result.Info
	fid := messages.FileID{Persistent: persistentID, Volatile: volatileID}

	logger.Debug("CREATE succeeded",
		logger.KeyPath, of.Path,
		logger.KeyFileID, persistentID,
		"action", uint32(createAction(result.Action)))

	return &HandlerResult{
		Status: types.StatusSuccess,
		Body: &messages.CreateResponse{
			CreateAction:   createAction(result.Action),
			CreationTime:   fi.CreationTime,
			LastAccessTime: fi.LastAccessTime,
			LastWriteTime:  fi.LastWriteTime,
			ChangeTime:     fi.ChangeTime,
			AllocationSize: allocationSize(fi),
			EndOfFile:      endOfFile(fi),
			FileAttributes: FileAttributes(fi),
			FileID:         fid,
		},
		FileID: fid,
	}
}
