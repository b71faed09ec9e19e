package handlers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/pkg/store"
)

// Filesystem geometry reported to clients. NTFS reports 8 sectors of 512
// bytes per allocation unit.
const (
	bytesPerSector uint32 = 512
	sectorsPerUnit uint32 = 8
	clusterSize           = uint64(sectorsPerUnit) * uint64(bytesPerSector) // 4096
)

// calculateAllocationSize returns size rounded up to the cluster size.
func calculateAllocationSize(size uint64) uint64 {
	return ((size + clusterSize - 1) / clusterSize) * clusterSize
}

// allocationSize is the allocation reported for fi. Directories report 0.
func allocationSize(fi *store.FileInfo) uint64 {
	if fi.IsDir {
		return 0
	}
	if fi.AllocationSize > fi.Size {
		return calculateAllocationSize(uint64(fi.AllocationSize))
	}
	return calculateAllocationSize(uint64(fi.Size))
}

// endOfFile is the size reported for fi. Directories report 0.
func endOfFile(fi *store.FileInfo) uint64 {
	if fi.IsDir {
		return 0
	}
	return uint64(fi.Size)
}

// IsHiddenFile reports whether name follows the Unix dot-file convention.
func IsHiddenFile(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// FileAttributes returns the DOS attributes of fi: the directory bit, the
// hidden bit for dot files, plus the bits the client set. A file with
// nothing else set reports FILE_ATTRIBUTE_NORMAL.
func FileAttributes(fi *store.FileInfo) uint32 {
	attrs := fi.Attributes &^ (types.FileAttributeDirectory | types.FileAttributeNormal)
	if fi.IsDir {
		attrs |= types.FileAttributeDirectory
	}
	if IsHiddenFile(fi.Name) {
		attrs |= types.FileAttributeHidden
	}
	if attrs == 0 {
		attrs = types.FileAttributeNormal
	}
	return attrs
}

// storeDisposition maps a CREATE disposition onto the store's. The values
// line up one to one.
func storeDisposition(d types.CreateDisposition) store.CreateDisposition {
	return store.CreateDisposition(d)
}

func createAction(a store.CreateAction) types.CreateAction {
	switch a {
	case store.Superseded:
		return types.FileSuperseded
	case store.Created:
		return types.FileCreated
	case store.Overwritten:
		return types.FileOverwritten
	default:
		return types.FileOpened
	}
}

// storeNotifyFilter maps a completion filter. The bits line up.
func storeNotifyFilter(filter uint32) store.NotifyFilter {
	return store.NotifyFilter(filter)
}

// StoreErrorToStatus maps errors from the store, the registry and the
// codecs to an NT status.
func StoreErrorToStatus(err error) types.Status {
	switch {
	case err == nil:
		return types.StatusSuccess
	case errors.Is(err, store.ErrNotFound):
		return types.StatusObjectNameNotFound
	case errors.Is(err, store.ErrPathNotFound):
		return types.StatusObjectPathNotFound
	case errors.Is(err, store.ErrExists):
		return types.StatusObjectNameCollision
	case errors.Is(err, store.ErrNotDirectory):
		return types.StatusNotADirectory
	case errors.Is(err, store.ErrIsDirectory):
		return types.StatusFileIsADirectory
	case errors.Is(err, store.ErrNotEmpty):
		return types.StatusDirectoryNotEmpty
	case errors.Is(err, store.ErrAccessDenied):
		return types.StatusAccessDenied
	case errors.Is(err, store.ErrNotSupported):
		return types.StatusNotSupported
	case errors.Is(err, store.ErrInvalidHandle):
		return types.StatusFileClosed
	case errors.Is(err, store.ErrInvalidPath):
		return types.StatusObjectNameInvalid
	case errors.Is(err, store.ErrInvalidArg):
		return types.StatusInvalidParameter
	case errors.Is(err, store.ErrDeletePending):
		return types.StatusDeletePending
	case errors.Is(err, store.ErrDiskFull):
		return types.StatusDiskFull
	case errors.Is(err, store.ErrCancelled), errors.Is(err, context.Canceled):
		return types.StatusCancelled
	case errors.Is(err, store.ErrNotifyOverflow):
		return types.StatusNotifyEnumDir
	case errors.Is(err, io.EOF):
		return types.StatusEndOfFile
	case errors.Is(err, registry.ErrHandleSpaceExhausted):
		return types.StatusInsufficientResources
	case errors.Is(err, messages.ErrMalformed),
		errors.Is(err, fileinfo.ErrBufferTooShort),
		errors.Is(err, smbenc.ErrShortRead),
		errors.Is(err, smbenc.ErrExpectMismatch),
		errors.Is(err, smbenc.ErrOutOfRange):
		return types.StatusInvalidParameter
	default:
		return types.StatusUnexpectedIOError
	}
}

// errorResult maps err to a bodyless result.
func errorResult(err error) *HandlerResult {
	return NewErrorResult(StoreErrorToStatus(err))
}

// =============================================================================
// Information class builders
// =============================================================================

func basicInformation(fi *store.FileInfo) fileinfo.FileBasicInformation {
	return fileinfo.FileBasicInformation{
		CreationTime:   fi.CreationTime,
		LastAccessTime: fi.LastAccessTime,
		LastWriteTime:  fi.LastWriteTime,
		ChangeTime:     fi.ChangeTime,
		FileAttributes: FileAttributes(fi),
	}
}

func standardInformation(fi *store.FileInfo) fileinfo.FileStandardInformation {
	links := fi.NumberOfLinks
	if links == 0 {
		links = 1
	}
	return fileinfo.FileStandardInformation{
		AllocationSize: allocationSize(fi),
		EndOfFile:      endOfFile(fi),
		NumberOfLinks:  links,
		DeletePending:  fi.DeletePending,
		Directory:      fi.IsDir,
	}
}

func networkOpenInformation(fi *store.FileInfo) *fileinfo.FileNetworkOpenInformation {
	return &fileinfo.FileNetworkOpenInformation{
		CreationTime:   fi.CreationTime,
		LastAccessTime: fi.LastAccessTime,
		LastWriteTime:  fi.LastWriteTime,
		ChangeTime:     fi.ChangeTime,
		AllocationSize: allocationSize(fi),
		EndOfFile:      endOfFile(fi),
		FileAttributes: FileAttributes(fi),
	}
}

func dirEntry(fi *store.FileInfo) *fileinfo.DirEntry {
	return &fileinfo.DirEntry{
		CreationTime:   fi.CreationTime,
		LastAccessTime: fi.LastAccessTime,
		LastWriteTime:  fi.LastWriteTime,
		ChangeTime:     fi.ChangeTime,
		EndOfFile:      endOfFile(fi),
		AllocationSize: allocationSize(fi),
		FileAttributes: FileAttributes(fi),
		FileID:         fi.ID,
		FileName:       fi.Name,
	}
}

// notifyRecords converts store changes to FILE_NOTIFY_INFORMATION records.
func notifyRecords(changes []store.Change) []fileinfo.FileNotifyInformation {
	out := make([]fileinfo.FileNotifyInformation, len(changes))
	for i, c := range changes {
		out[i] = fileinfo.FileNotifyInformation{Action: uint32(c.Action), FileName: c.Name}
	}
	return out
}
