package store

import "context"

// Handle is an open file or directory owned by the Store that returned it.
type Handle interface {
	// Path is the normalised path the handle currently refers to. It
	// follows renames.
	Path() string
	IsDir() bool
}

// Store is the file operation surface of a share.
//
// Every method may be called concurrently. Methods taking a Handle return
// ErrInvalidHandle for handles that are closed or belong to another store.
type Store interface {
	CreateFile(ctx context.Context, req CreateRequest) (Handle, *CreateResult, error)
	CloseFile(ctx context.Context, h Handle) error

	// ReadFile returns up to length bytes at offset. Reading at or past the
	// end of the file returns an empty slice and io.EOF.
	ReadFile(ctx context.Context, h Handle, offset int64, length int) ([]byte, error)
	WriteFile(ctx context.Context, h Handle, offset int64, data []byte) (int, error)
	FlushFile(ctx context.Context, h Handle) error

	GetFileInfo(ctx context.Context, h Handle) (*FileInfo, error)
	SetBasicInfo(ctx context.Context, h Handle, info BasicInfo) error
	SetEndOfFile(ctx context.Context, h Handle, size int64) error
	SetAllocationSize(ctx context.Context, h Handle, size int64) error
	SetDeleteOnClose(ctx context.Context, h Handle, deleteOnClose bool) error

	// Rename moves the handle's file to newPath. Link adds linkPath as a
	// second name for it.
	Rename(ctx context.Context, h Handle, newPath string, replaceIfExists bool) error
	Link(ctx context.Context, h Handle, linkPath string, replaceIfExists bool) error

	// QueryDirectory lists the entries of a directory handle whose names
	// match pattern, sorted by name. "." and ".." are not included.
	QueryDirectory(ctx context.Context, h Handle, pattern string) ([]FileInfo, error)
	GetFileSystemInfo(ctx context.Context) (*FileSystemInfo, error)
	DeviceIOControl(ctx context.Context, h Handle, ctlCode uint32, input []byte, maxOutput int) ([]byte, error)
}

// Token identifies a pending change notification.
type Token uint64

// CompletionFunc receives the outcome of a change notification. It is
// called at most once, from a store-owned goroutine.
type CompletionFunc func(changes []Change, err error)

// Notifier is implemented by stores that can watch directories.
type Notifier interface {
	// NotifyChange arms a one-shot watch on the directory handle h. A nil
	// error means the watch is pending and complete will be called when a
	// change matching filter occurs. When the collected changes would not
	// fit in bufferSize bytes, complete receives ErrNotifyOverflow.
	NotifyChange(ctx context.Context, h Handle, filter NotifyFilter, watchTree bool, bufferSize int, complete CompletionFunc) (Token, error)

	// Cancel disarms a pending watch. complete is not called afterwards.
	// Cancelling an unknown or already completed token returns ErrNotFound.
	Cancel(token Token) error
}
