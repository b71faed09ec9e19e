package fileinfo

import (
	"fmt"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// DirEntry is the union of fields the QUERY_DIRECTORY classes report.
type DirEntry struct {
	FileIndex      uint32
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	EndOfFile      uint64
	AllocationSize uint64
	FileAttributes uint32
	EaSize         uint32
	FileID         uint64
	ShortName      string
	FileName       string
}

// Fixed sizes of the directory classes, up to the FileName field.
var dirFixedSize = map[types.FileInfoClass]int{
	types.FileDirectoryInformation:       64,
	types.FileFullDirectoryInformation:   68,
	types.FileIDFullDirectoryInformation: 80,
	types.FileBothDirectoryInformation:   94,
	types.FileIDBothDirectoryInformation: 104,
	types.FileNamesInformation:           12,
}

// IsDirectoryClass reports whether class is valid for QUERY_DIRECTORY.
func IsDirectoryClass(class types.FileInfoClass) bool {
	_, ok := dirFixedSize[class]
	return ok
}

// DirEntryLength is the unpadded encoded size of e in class.
func DirEntryLength(class types.FileInfoClass, e *DirEntry) int {
	return dirFixedSize[class] + smbenc.UTF16Len(e.FileName)
}

// EncodeDirEntry encodes one entry with NextEntryOffset left zero. The
// result is not padded; DirectoryList aligns entries when chaining them.
func EncodeDirEntry(class types.FileInfoClass, e *DirEntry) ([]byte, error) {
	fixed, ok := dirFixedSize[class]
	if !ok {
		return nil, fmt.Errorf("fileinfo: class %d is not a directory class", class)
	}
	nameLen := smbenc.UTF16Len(e.FileName)
	w := smbenc.NewWriter(fixed + nameLen)
	w.WriteUint32(0) // NextEntryOffset
	w.WriteUint32(e.FileIndex)

	if class == types.FileNamesInformation {
		w.WriteUint32(uint32(nameLen))
		w.WriteUTF16(e.FileName)
		return w.Bytes(), nil
	}

	w.WriteUint64(types.TimeToFiletime(e.CreationTime))
	w.WriteUint64(types.TimeToFiletime(e.LastAccessTime))
	w.WriteUint64(types.TimeToFiletime(e.LastWriteTime))
	w.WriteUint64(types.TimeToFiletime(e.ChangeTime))
	w.WriteUint64(e.EndOfFile)
	w.WriteUint64(e.AllocationSize)
	w.WriteUint32(e.FileAttributes)
	w.WriteUint32(uint32(nameLen))

	switch class {
	case types.FileFullDirectoryInformation:
		w.WriteUint32(e.EaSize)
	case types.FileIDFullDirectoryInformation:
		w.WriteUint32(e.EaSize)
		w.WriteUint32(0) // Reserved
		w.WriteUint64(e.FileID)
	case types.FileBothDirectoryInformation, types.FileIDBothDirectoryInformation:
		w.WriteUint32(e.EaSize)
		short := smbenc.EncodeUTF16(e.ShortName)
		if len(short) > 24 {
			short = short[:24]
		}
		w.WriteUint8(uint8(len(short)))
		w.WriteUint8(0) // Reserved1
		w.WriteBytes(short)
		w.WriteZeros(24 - len(short))
		if class == types.FileIDBothDirectoryInformation {
			w.WriteUint16(0) // Reserved2
			w.WriteUint64(e.FileID)
		}
	}

	w.WriteUTF16(e.FileName)
	return w.Bytes(), w.Err()
}

// DirectoryList chains encoded entries with 8-byte alignment, linking
// each entry's NextEntryOffset to its successor, within a byte limit.
type DirectoryList struct {
	limit   int
	buf     []byte
	lastOff int
	count   int
}

func NewDirectoryList(limit int) *DirectoryList {
	return &DirectoryList{limit: limit}
}

// Add appends entry if it fits and reports whether it did.
func (l *DirectoryList) Add(entry []byte) bool {
	start := len(l.buf)
	if l.count > 0 {
		start = align8(start)
	}
	if start+len(entry) > l.limit {
		return false
	}
	if l.count > 0 {
		l.buf = append(l.buf, make([]byte, start-len(l.buf))...)
		putUint32(l.buf[l.lastOff:], uint32(start-l.lastOff))
	}
	l.buf = append(l.buf, entry...)
	l.lastOff = start
	l.count++
	return true
}

func (l *DirectoryList) Len() int { return l.count }

func (l *DirectoryList) Bytes() []byte { return l.buf }

func align8(n int) int { return (n + 7) &^ 7 }

func putUint32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
