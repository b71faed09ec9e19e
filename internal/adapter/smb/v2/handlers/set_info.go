package handlers

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// SetInfo handles the SMB2 SET_INFO command [MS-SMB2] 2.2.39, 2.2.40.
//
// **Supported classes:**
//
//   - FileBasicInformation: times and attributes; zero fields stay unchanged
//   - FileRenameInformation and FileLinkInformation (Type2 layout)
//   - FileDispositionInformation: delete on close
//   - FileAllocationInformation and FileEndOfFileInformation
//
// Only the file info type is supported. Read-only shares answer
// STATUS_ACCESS_DENIED.
func (h *Handler) SetInfo(ctx *SMBHandlerContext, req *messages.SetInfoRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}
	if req.InfoType != types.InfoTypeFile {
		return NewErrorResult(types.StatusNotSupported)
	}
	if ctx.Share.ReadOnly {
		return NewErrorResult(types.StatusAccessDenied)
	}

	class := types.FileInfoClass(req.FileInfoClass)
	logger.Debug("SET_INFO request",
		logger.KeyFileID, of.PersistentID,
		logger.KeyPath, of.Handle.Path(),
		logger.KeyInfoClass, uint8(class))

	if err := h.setFileInformation(ctx, of, class, req.Buffer); err != nil {
		logger.Debug("SET_INFO failed",
			logger.KeyFileID, of.PersistentID,
			logger.KeyInfoClass, uint8(class),
			logger.KeyError, err)
		if errors.Is(err, errUnsupportedClass) {
			return NewErrorResult(types.StatusInvalidInfoClass)
		}
		return errorResult(err)
	}
	return NewResult(types.StatusSuccess, &messages.SetInfoResponse{})
}

// errUnsupportedClass marks an information class SET_INFO does not handle.
var errUnsupportedClass = errors.New("unsupported information class")

func (h *Handler) setFileInformation(ctx *SMBHandlerContext, of *registry.OpenFile, class types.FileInfoClass, buf []byte) error {
	st := of.Share.Store

	switch class {
	case types.FileBasicInformation:
		info, err := fileinfo.DecodeFileBasicInformation(buf)
		if err != nil {
			return err
		}
		return st.SetBasicInfo(ctx.Context, of.Handle, store.BasicInfo{
			CreationTime:   info.CreationTime,
			LastAccessTime: info.LastAccessTime,
			LastWriteTime:  info.LastWriteTime,
			ChangeTime:     info.ChangeTime,
			Attributes:     info.FileAttributes,
		})

	case types.FileRenameInformation:
		info, err := fileinfo.DecodeFileRenameInformationType2(buf)
		if err != nil {
			return err
		}
		if info.RootDirectory != 0 {
			return store.ErrInvalidArg
		}
		logger.Debug("rename", logger.KeyPath, of.Handle.Path(), logger.KeyNewPath, info.FileName)
		return st.Rename(ctx.Context, of.Handle, info.FileName, info.ReplaceIfExists)

	case types.FileLinkInformation:
		info, err := fileinfo.DecodeFileLinkInformationType2(buf)
		if err != nil {
			return err
		}
		if info.RootDirectory != 0 {
			return store.ErrInvalidArg
		}
		logger.Debug("link", logger.KeyPath, of.Handle.Path(), logger.KeyNewPath, info.FileName)
		return st.Link(ctx.Context, of.Handle, info.FileName, info.ReplaceIfExists)

	case types.FileDispositionInformation:
		del, err := fileinfo.DecodeFileDispositionInformation(buf)
		if err != nil {
			return err
		}
		return st.SetDeleteOnClose(ctx.Context, of.Handle, del)

	case types.FileAllocationInformation:
		size, err := fileinfo.DecodeUint64Information(buf)
		if err != nil {
			return err
		}
		return st.SetAllocationSize(ctx.Context, of.Handle, int64(size))

	case types.FileEndOfFileInformation:
		size, err := fileinfo.DecodeUint64Information(buf)
		if err != nil {
			return err
		}
		return st.SetEndOfFile(ctx.Context, of.Handle, int64(size))

	default:
		return fmt.Errorf("%w: %d", errUnsupportedClass, class)
	}
}
