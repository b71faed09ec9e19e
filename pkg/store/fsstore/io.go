package fsstore

import (
	"context"
	"errors"
	"io"

	"github.com/marmos91/dittosmb/pkg/store"
)

func (s *Store) fileHandle(sh store.Handle, write bool) (*handle, error) {
	h, err := s.lookup(sh)
	if err != nil {
		return nil, err
	}
	if h.dir {
		return nil, store.NewPathError("io", h.Path(), store.ErrIsDirectory)
	}
	if write && !h.write {
		return nil, store.NewPathError("io", h.Path(), store.ErrAccessDenied)
	}
	return h, nil
}

func (s *Store) ReadFile(ctx context.Context, sh store.Handle, offset int64, length int) ([]byte, error) {
	h, err := s.fileHandle(sh, false)
	if err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 {
		return nil, store.ErrInvalidArg
	}
	buf := make([]byte, length)
	n, err := h.file.ReadAt(buf, offset)
	switch {
	case err == nil, errors.Is(err, io.EOF) && n > 0:
		return buf[:n], nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	default:
		return nil, mapFsError("read", h.Path(), err)
	}
}

func (s *Store) WriteFile(ctx context.Context, sh store.Handle, offset int64, data []byte) (int, error) {
	h, err := s.fileHandle(sh, true)
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, store.ErrInvalidArg
	}
	if uint64(offset)+uint64(len(data)) > s.capacity {
		return 0, store.NewPathError("write", h.Path(), store.ErrDiskFull)
	}
	n, err := h.file.WriteAt(data, offset)
	if err != nil {
		return n, mapFsError("write", h.Path(), err)
	}
	s.publish(event{action: store.ActionModified, path: h.Path(), filter: store.NotifySize | store.NotifyLastWrite})
	return n, nil
}

// FlushFile syncs file data. Flushing a directory handle is a no-op.
func (s *Store) FlushFile(ctx context.Context, sh store.Handle) error {
	h, err := s.lookup(sh)
	if err != nil {
		return err
	}
	if h.file == nil {
		return nil
	}
	return mapFsError("flush", h.Path(), h.file.Sync())
}

func (s *Store) SetEndOfFile(ctx context.Context, sh store.Handle, size int64) error {
	h, err := s.fileHandle(sh, true)
	if err != nil {
		return err
	}
	if size < 0 {
		return store.ErrInvalidArg
	}
	if uint64(size) > s.capacity {
		return store.NewPathError("truncate", h.Path(), store.ErrDiskFull)
	}
	if err := h.file.Truncate(size); err != nil {
		return mapFsError("truncate", h.Path(), err)
	}
	s.publish(event{action: store.ActionModified, path: h.Path(), filter: store.NotifySize | store.NotifyLastWrite})
	return nil
}

// SetAllocationSize only shrinks: allocation below the current size
// truncates the file, larger values are accepted and ignored.
func (s *Store) SetAllocationSize(ctx context.Context, sh store.Handle, size int64) error {
	h, err := s.fileHandle(sh, true)
	if err != nil {
		return err
	}
	fi, err := h.file.Stat()
	if err != nil {
		return mapFsError("allocate", h.Path(), err)
	}
	if size < fi.Size() {
		return s.SetEndOfFile(ctx, sh, size)
	}
	return nil
}
