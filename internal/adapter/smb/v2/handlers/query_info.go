package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// maxComponentNameLength is reported in FileFsAttributeInformation.
const maxComponentNameLength = 255

// QueryInfo handles the SMB2 QUERY_INFO command [MS-SMB2] 2.2.37, 2.2.38.
//
// **Purpose:**
//
// Returns file or filesystem information for an open handle.
//
// **Process:**
//
//  1. Resolve the handle
//  2. Build the requested class (STATUS_INVALID_INFO_CLASS when unknown)
//  3. Fit it in OutputBufferLength: a buffer smaller than the fixed part
//     is STATUS_INFO_LENGTH_MISMATCH, a buffer that cuts the variable part
//     gets the truncated data with STATUS_BUFFER_OVERFLOW
//
// Security descriptors and quotas are not supported.
func (h *Handler) QueryInfo(ctx *SMBHandlerContext, req *messages.QueryInfoRequest) *HandlerResult {
	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}

	logger.Debug("QUERY_INFO request",
		logger.KeyFileID, of.PersistentID,
		"infoType", req.InfoType,
		logger.KeyInfoClass, req.FileInfoClass)

	var (
		info  fileinfo.Structure
		fixed int
		err   error
	)
	switch req.InfoType {
	case types.InfoTypeFile:
		info, fixed, err = h.fileInformation(ctx, of, types.FileInfoClass(req.FileInfoClass))
	case types.InfoTypeFilesystem:
		info, fixed, err = h.fsInformation(ctx, of, types.FsInfoClass(req.FileInfoClass))
	case types.InfoTypeSecurity, types.InfoTypeQuota:
		return NewErrorResult(types.StatusNotSupported)
	default:
		return NewErrorResult(types.StatusInvalidParameter)
	}
	if err != nil {
		return errorResult(err)
	}
	if info == nil {
		return NewErrorResult(types.StatusInvalidInfoClass)
	}

	buf, err := fileinfo.Marshal(info)
	if err != nil {
		logger.Error("QUERY_INFO encode", logger.KeyError, err)
		return NewErrorResult(types.StatusInternalError)
	}

	limit := int(req.OutputBufferLength)
	switch {
	case len(buf) <= limit:
		return NewResult(types.StatusSuccess, messages.NewQueryInfoResponse(buf))
	case limit < fixed:
		return NewErrorResult(types.StatusInfoLengthMismatch)
	default:
		return NewResult(types.StatusBufferOverflow, messages.NewQueryInfoResponse(buf[:limit]))
	}
}

// fileInformation builds a file information class. A nil structure means
// the class is not supported. fixed is the size below which the class
// cannot be returned at all.
func (h *Handler) fileInformation(ctx *SMBHandlerContext, of *registry.OpenFile, class types.FileInfoClass) (fileinfo.Structure, int, error) {
	fi, err := of.Share.Store.GetFileInfo(ctx.Context, of.Handle)
	if err != nil {
		return nil, 0, err
	}

	var info fileinfo.Structure
	switch class {
	case types.FileBasicInformation:
		b := basicInformation(fi)
		info = &b
	case types.FileStandardInformation:
		s := standardInformation(fi)
		info = &s
	case types.FileInternalInformation:
		info = fileinfo.Uint64Information(fi.ID)
	case types.FileEaInformation:
		info = fileinfo.Uint32Information(0)
	case types.FileAccessInformation:
		info = fileinfo.Uint32Information(of.DesiredAccess)
	case types.FilePositionInformation:
		info = fileinfo.Uint64Information(0)
	case types.FileModeInformation, types.FileAlignmentInformation:
		info = fileinfo.Uint32Information(0)
	case types.FileNetworkOpenInformation:
		info = networkOpenInformation(fi)
	case types.FileAttributeTagInformation:
		info = &fileinfo.FileAttributeTagInformation{FileAttributes: FileAttributes(fi)}
	case types.FileNameInformation:
		return &fileinfo.FileNameInformation{FileName: smbName(fi)}, 4, nil
	case types.FileAllInformation:
		return &fileinfo.FileAllInformation{
			Basic:       basicInformation(fi),
			Standard:    standardInformation(fi),
			IndexNumber: fi.ID,
			AccessFlags: of.DesiredAccess,
			Name:        fileinfo.FileNameInformation{FileName: smbName(fi)},
		}, 100, nil
	case types.FileStreamInformation:
		if fi.IsDir {
			return emptyInformation{}, 0, nil
		}
		return &fileinfo.FileStreamInformation{
			StreamName:           fileinfo.DefaultStreamName,
			StreamSize:           endOfFile(fi),
			StreamAllocationSize: allocationSize(fi),
		}, 24, nil
	default:
		return nil, 0, nil
	}
	return info, info.Length(), nil
}

// fsInformation builds a filesystem information class.
func (h *Handler) fsInformation(ctx *SMBHandlerContext, of *registry.OpenFile, class types.FsInfoClass) (fileinfo.Structure, int, error) {
	fs, err := of.Share.Store.GetFileSystemInfo(ctx.Context)
	if err != nil {
		return nil, 0, err
	}

	bps := fs.BytesPerSector
	if bps == 0 {
		bps = bytesPerSector
	}
	spu := fs.SectorsPerUnit
	if spu == 0 {
		spu = sectorsPerUnit
	}
	unit := uint64(bps) * uint64(spu)

	switch class {
	case types.FileFsVolumeInformation:
		return &fileinfo.FileFsVolumeInformation{
			VolumeCreationTime: fs.CreationTime,
			VolumeSerialNumber: fs.SerialNumber,
			VolumeLabel:        fs.VolumeLabel,
		}, 18, nil
	case types.FileFsSizeInformation:
		info := &fileinfo.FileFsSizeInformation{
			TotalAllocationUnits:     fs.TotalBytes / unit,
			AvailableAllocationUnits: fs.FreeBytes / unit,
			SectorsPerAllocationUnit: spu,
			BytesPerSector:           bps,
		}
		return info, info.Length(), nil
	case types.FileFsFullSizeInformation:
		info := &fileinfo.FileFsFullSizeInformation{
			TotalAllocationUnits:           fs.TotalBytes / unit,
			CallerAvailableAllocationUnits: fs.FreeBytes / unit,
			ActualAvailableAllocationUnits: fs.FreeBytes / unit,
			SectorsPerAllocationUnit:       spu,
			BytesPerSector:                 bps,
		}
		return info, info.Length(), nil
	case types.FileFsDeviceInformation:
		info := &fileinfo.FileFsDeviceInformation{DeviceType: fileinfo.FileDeviceDisk}
		return info, info.Length(), nil
	case types.FileFsAttributeInformation:
		return &fileinfo.FileFsAttributeInformation{
			FileSystemAttributes:       fsAttributes(fs),
			MaximumComponentNameLength: maxComponentNameLength,
			FileSystemName:             fs.FileSystemName,
		}, 12, nil
	default:
		return nil, 0, nil
	}
}

func fsAttributes(fs *store.FileSystemInfo) uint32 {
	attrs := fileinfo.FileCasePreserved | fileinfo.FileUnicodeOnDisk
	if fs.CaseSensitive {
		attrs |= fileinfo.FileCaseSensitiveSearch
	}
	if fs.SupportsHardLinks {
		attrs |= fileinfo.FileSupportsHardLinks
	}
	return attrs
}

// smbName is the share-relative name reported for fi, with a leading
// backslash.
func smbName(fi *store.FileInfo) string {
	return `\` + store.ToSMBPath(fi.Path)
}

// emptyInformation is a zero-length result, such as the stream list of a
// directory.
type emptyInformation struct{}

func (emptyInformation) Length() int    { return 0 }
func (emptyInformation) Encode() []byte { return []byte{} }
