package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("no such file")
	ErrPathNotFound   = errors.New("parent path not found")
	ErrExists         = errors.New("file exists")
	ErrNotDirectory   = errors.New("not a directory")
	ErrIsDirectory    = errors.New("is a directory")
	ErrNotEmpty       = errors.New("directory not empty")
	ErrAccessDenied   = errors.New("access denied")
	ErrNotSupported   = errors.New("operation not supported")
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidArg     = errors.New("invalid argument")
	ErrDeletePending  = errors.New("delete pending")
	ErrDiskFull       = errors.New("disk full")
	ErrCancelled      = errors.New("cancelled")
	ErrNotifyOverflow = errors.New("change notification overflow")
)

// PathError records the operation and path an error occurred on.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError wraps err unless it is nil.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}
