package fileinfo

import (
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// FileBasicInformation [MS-FSCC] 2.4.7. A zero time means "not set" on
// decode and encodes as 0.
type FileBasicInformation struct {
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	FileAttributes uint32
}

func (i *FileBasicInformation) Length() int { return 40 }

func (i *FileBasicInformation) Encode() []byte {
	w := smbenc.NewWriter(40)
	w.WriteUint64(types.TimeToFiletime(i.CreationTime))
	w.WriteUint64(types.TimeToFiletime(i.LastAccessTime))
	w.WriteUint64(types.TimeToFiletime(i.LastWriteTime))
	w.WriteUint64(types.TimeToFiletime(i.ChangeTime))
	w.WriteUint32(i.FileAttributes)
	w.WriteZeros(4)
	return w.Bytes()
}

func DecodeFileBasicInformation(buf []byte) (*FileBasicInformation, error) {
	if err := need(buf, 36, "FileBasicInformation"); err != nil {
		return nil, err
	}
	r := smbenc.NewReader(buf)
	return &FileBasicInformation{
		CreationTime:   types.FiletimeToTime(r.ReadUint64()),
		LastAccessTime: types.FiletimeToTime(r.ReadUint64()),
		LastWriteTime:  types.FiletimeToTime(r.ReadUint64()),
		ChangeTime:     types.FiletimeToTime(r.ReadUint64()),
		FileAttributes: r.ReadUint32(),
	}, nil
}

// FileStandardInformation [MS-FSCC] 2.4.41
type FileStandardInformation struct {
	AllocationSize uint64
	EndOfFile      uint64
	NumberOfLinks  uint32
	DeletePending  bool
	Directory      bool
}

func (i *FileStandardInformation) Length() int { return 24 }

func (i *FileStandardInformation) Encode() []byte {
	w := smbenc.NewWriter(24)
	w.WriteUint64(i.AllocationSize)
	w.WriteUint64(i.EndOfFile)
	w.WriteUint32(i.NumberOfLinks)
	w.WriteBool(i.DeletePending)
	w.WriteBool(i.Directory)
	w.WriteZeros(2)
	return w.Bytes()
}

// FileNetworkOpenInformation [MS-FSCC] 2.4.29
type FileNetworkOpenInformation struct {
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	AllocationSize uint64
	EndOfFile      uint64
	FileAttributes uint32
}

func (i *FileNetworkOpenInformation) Length() int { return 56 }

func (i *FileNetworkOpenInformation) Encode() []byte {
	w := smbenc.NewWriter(56)
	w.WriteUint64(types.TimeToFiletime(i.CreationTime))
	w.WriteUint64(types.TimeToFiletime(i.LastAccessTime))
	w.WriteUint64(types.TimeToFiletime(i.LastWriteTime))
	w.WriteUint64(types.TimeToFiletime(i.ChangeTime))
	w.WriteUint64(i.AllocationSize)
	w.WriteUint64(i.EndOfFile)
	w.WriteUint32(i.FileAttributes)
	w.WriteZeros(4)
	return w.Bytes()
}

// FileAttributeTagInformation [MS-FSCC] 2.4.6
type FileAttributeTagInformation struct {
	FileAttributes uint32
	ReparseTag     uint32
}

func (i *FileAttributeTagInformation) Length() int { return 8 }

func (i *FileAttributeTagInformation) Encode() []byte {
	w := smbenc.NewWriter(8)
	w.WriteUint32(i.FileAttributes)
	w.WriteUint32(i.ReparseTag)
	return w.Bytes()
}

// FileNameInformation [MS-FSCC] 2.4.28
type FileNameInformation struct {
	FileName string
}

func (i *FileNameInformation) Length() int { return 4 + smbenc.UTF16Len(i.FileName) }

func (i *FileNameInformation) Encode() []byte {
	w := smbenc.NewWriter(i.Length())
	w.WriteUint32(uint32(smbenc.UTF16Len(i.FileName)))
	w.WriteUTF16(i.FileName)
	return w.Bytes()
}

// FileAllInformation [MS-FSCC] 2.4.2: Basic, Standard, Internal, Ea,
// Access, Position, Mode, Alignment and Name back to back.
type FileAllInformation struct {
	Basic                FileBasicInformation
	Standard             FileStandardInformation
	IndexNumber          uint64
	EaSize               uint32
	AccessFlags          uint32
	CurrentByteOffset    uint64
	Mode                 uint32
	AlignmentRequirement uint32
	Name                 FileNameInformation
}

func (i *FileAllInformation) Length() int { return 96 + i.Name.Length() }

func (i *FileAllInformation) Encode() []byte {
	w := smbenc.NewWriter(i.Length())
	w.WriteBytes(i.Basic.Encode())
	w.WriteBytes(i.Standard.Encode())
	w.WriteUint64(i.IndexNumber)
	w.WriteUint32(i.EaSize)
	w.WriteUint32(i.AccessFlags)
	w.WriteUint64(i.CurrentByteOffset)
	w.WriteUint32(i.Mode)
	w.WriteUint32(i.AlignmentRequirement)
	w.WriteBytes(i.Name.Encode())
	return w.Bytes()
}

// FileStreamInformation [MS-FSCC] 2.4.43, a single entry.
type FileStreamInformation struct {
	StreamName           string
	StreamSize           uint64
	StreamAllocationSize uint64
}

// DefaultStreamName is the unnamed data stream every regular file has.
const DefaultStreamName = "::$DATA"

func (i *FileStreamInformation) Length() int { return 24 + smbenc.UTF16Len(i.StreamName) }

func (i *FileStreamInformation) Encode() []byte {
	w := smbenc.NewWriter(i.Length())
	w.WriteUint32(0) // NextEntryOffset
	w.WriteUint32(uint32(smbenc.UTF16Len(i.StreamName)))
	w.WriteUint64(i.StreamSize)
	w.WriteUint64(i.StreamAllocationSize)
	w.WriteUTF16(i.StreamName)
	return w.Bytes()
}

// Uint32Information covers the single-field classes FileEaInformation,
// FileAccessInformation, FileModeInformation and FileAlignmentInformation.
type Uint32Information uint32

func (i Uint32Information) Length() int { return 4 }

func (i Uint32Information) Encode() []byte {
	w := smbenc.NewWriter(4)
	w.WriteUint32(uint32(i))
	return w.Bytes()
}

// Uint64Information covers FileInternalInformation, FilePositionInformation,
// FileEndOfFileInformation and FileAllocationInformation.
type Uint64Information uint64

func (i Uint64Information) Length() int { return 8 }

func (i Uint64Information) Encode() []byte {
	w := smbenc.NewWriter(8)
	w.WriteUint64(uint64(i))
	return w.Bytes()
}

// DecodeUint64Information reads the 8-byte value of an end-of-file,
// allocation or position payload.
func DecodeUint64Information(buf []byte) (uint64, error) {
	if err := need(buf, 8, "8-byte information"); err != nil {
		return 0, err
	}
	return smbenc.NewReader(buf).ReadUint64(), nil
}

// DecodeFileDispositionInformation reads the DeletePending byte. [MS-FSCC] 2.4.11
func DecodeFileDispositionInformation(buf []byte) (bool, error) {
	if err := need(buf, 1, "FileDispositionInformation"); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}
