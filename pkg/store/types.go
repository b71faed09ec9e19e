package store

import "time"

// CreateDisposition selects what CreateFile does when the target does or
// does not exist.
type CreateDisposition uint8

const (
	Supersede CreateDisposition = iota
	Open
	Create
	OpenIf
	Overwrite
	OverwriteIf
)

// CreateAction reports what CreateFile did.
type CreateAction uint8

const (
	Superseded CreateAction = iota
	Opened
	Created
	Overwritten
)

// CreateRequest describes a CreateFile call.
type CreateRequest struct {
	Path        string
	Disposition CreateDisposition

	// Directory requires the target to be a directory and creates one when
	// the disposition creates. NonDirectory requires a non-directory.
	Directory    bool
	NonDirectory bool

	DeleteOnClose bool
	Attributes    uint32

	// Write opens the handle for modification.
	Write bool
}

type CreateResult struct {
	Action CreateAction
	Info   FileInfo
}

// FileInfo describes a file or directory.
type FileInfo struct {
	Name           string
	Path           string
	ID             uint64
	Size           int64
	AllocationSize int64
	IsDir          bool

	// Attributes carries the DOS attribute bits a client set explicitly,
	// such as read-only or hidden.
	Attributes uint32

	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time

	NumberOfLinks uint32
	DeletePending bool
}

// BasicInfo is the settable subset of FileInfo. Zero fields are left unchanged.
type BasicInfo struct {
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	Attributes     uint32
}

// FileSystemInfo describes the volume behind a share.
type FileSystemInfo struct {
	VolumeLabel       string
	SerialNumber      uint32
	CreationTime      time.Time
	FileSystemName    string
	TotalBytes        uint64
	FreeBytes         uint64
	BytesPerSector    uint32
	SectorsPerUnit    uint32
	CaseSensitive     bool
	SupportsHardLinks bool
}

// NotifyFilter selects which kinds of change complete a watch. The bit
// values match the SMB2 completion filter.
type NotifyFilter uint32

const (
	NotifyFileName   NotifyFilter = 0x001
	NotifyDirName    NotifyFilter = 0x002
	NotifyAttributes NotifyFilter = 0x004
	NotifySize       NotifyFilter = 0x008
	NotifyLastWrite  NotifyFilter = 0x010
	NotifyLastAccess NotifyFilter = 0x020
	NotifyCreation   NotifyFilter = 0x040
	NotifySecurity   NotifyFilter = 0x100
)

// NotifyAction is what happened to a name. Values match FILE_NOTIFY_INFORMATION.
type NotifyAction uint32

const (
	ActionAdded          NotifyAction = 1
	ActionRemoved        NotifyAction = 2
	ActionModified       NotifyAction = 3
	ActionRenamedOldName NotifyAction = 4
	ActionRenamedNewName NotifyAction = 5
)

// Change is one entry reported to a watch. Name is relative to the
// watched directory and uses backslash separators.
type Change struct {
	Action NotifyAction
	Name   string
}
