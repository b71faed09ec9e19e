package fsstore

import (
	"context"
	"os"
	"time"

	"github.com/marmos91/dittosmb/pkg/store"
)

// CreateFile opens or creates req.Path according to its disposition.
func (s *Store) CreateFile(ctx context.Context, req store.CreateRequest) (store.Handle, *store.CreateResult, error) {
	p, err := store.NormalizePath(req.Path)
	if err != nil {
		return nil, nil, err
	}
	if req.Disposition > store.OverwriteIf || (req.Directory && req.NonDirectory) {
		return nil, nil, store.NewPathError("create", p, store.ErrInvalidArg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[p] {
		return nil, nil, store.NewPathError("create", p, store.ErrDeletePending)
	}

	fi, statErr := s.fs.Stat(p)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return nil, nil, mapFsError("create", p, statErr)
	}

	if !exists {
		parent, err := s.fs.Stat(store.Parent(p))
		if err != nil || !parent.IsDir() {
			return nil, nil, store.NewPathError("create", p, store.ErrPathNotFound)
		}
	}

	var action store.CreateAction
	switch {
	case exists && req.Disposition == store.Create:
		return nil, nil, store.NewPathError("create", p, store.ErrExists)
	case !exists && (req.Disposition == store.Open || req.Disposition == store.Overwrite):
		return nil, nil, store.NewPathError("create", p, store.ErrNotFound)
	case exists && fi.IsDir() && req.NonDirectory:
		return nil, nil, store.NewPathError("create", p, store.ErrIsDirectory)
	case exists && !fi.IsDir() && req.Directory:
		return nil, nil, store.NewPathError("create", p, store.ErrNotDirectory)
	case exists && fi.IsDir() && truncates(req.Disposition):
		return nil, nil, store.NewPathError("create", p, store.ErrInvalidArg)
	case exists && s.attrs[p]&readOnlyAttr != 0 && (req.Write || truncates(req.Disposition) || req.DeleteOnClose):
		return nil, nil, store.NewPathError("create", p, store.ErrAccessDenied)
	case exists && req.Disposition == store.Supersede:
		action = store.Superseded
	case exists && (req.Disposition == store.Overwrite || req.Disposition == store.OverwriteIf):
		action = store.Overwritten
	case exists:
		action = store.Opened
	default:
		action = store.Created
	}

	isDir := (exists && fi.IsDir()) || (!exists && req.Directory)
	var h *handle

	if isDir {
		if !exists {
			if err := s.fs.Mkdir(p, 0o755); err != nil {
				return nil, nil, mapFsError("mkdir", p, err)
			}
		}
		h = newHandle(p, true, req.Write, nil)
	} else {
		flags := os.O_RDONLY
		if req.Write {
			flags = os.O_RDWR
		}
		switch action {
		case store.Created:
			flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
		case store.Overwritten, store.Superseded:
			flags = os.O_RDWR | os.O_TRUNC
		}
		f, err := s.fs.OpenFile(p, flags, 0o644)
		if err != nil {
			return nil, nil, mapFsError("open", p, err)
		}
		h = newHandle(p, false, req.Write || action != store.Opened, f)
	}

	if action == store.Created {
		s.created[p] = time.Now()
		s.attrs[p] = req.Attributes & settableAttrs
	} else if action != store.Opened {
		s.attrs[p] = req.Attributes & settableAttrs
	}
	if req.DeleteOnClose {
		if isDir && !s.dirEmpty(p) {
			if h.file != nil {
				_ = h.file.Close()
			}
			return nil, nil, store.NewPathError("create", p, store.ErrNotEmpty)
		}
		s.pending[p] = true
	}

	s.handles[h] = struct{}{}
	s.opens[p]++

	info, err := s.statLocked(p)
	if err != nil {
		return nil, nil, err
	}

	switch action {
	case store.Created:
		s.publish(event{action: store.ActionAdded, path: p, filter: nameFilter(isDir)})
	case store.Overwritten, store.Superseded:
		s.publish(event{action: store.ActionModified, path: p, filter: store.NotifySize | store.NotifyLastWrite})
	}

	return h, &store.CreateResult{Action: action, Info: *info}, nil
}

// CloseFile releases h. The last close of a delete-pending path removes it.
func (s *Store) CloseFile(ctx context.Context, sh store.Handle) error {
	h, err := s.lookup(sh)
	if err != nil {
		return err
	}
	if !h.closed.CompareAndSwap(false, true) {
		return store.ErrInvalidHandle
	}

	var closeErr error
	if h.file != nil {
		closeErr = h.file.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handles, h)
	s.hub.dropHandle(h)

	p := h.Path()
	s.opens[p]--
	if s.opens[p] > 0 {
		return closeErr
	}
	delete(s.opens, p)

	if s.pending[p] {
		if err := s.fs.Remove(p); err != nil {
			return mapFsError("delete", p, err)
		}
		s.forget(p)
		s.publish(event{action: store.ActionRemoved, path: p, filter: nameFilter(h.dir)})
	}
	return closeErr
}

func truncates(d store.CreateDisposition) bool {
	return d == store.Supersede || d == store.Overwrite || d == store.OverwriteIf
}

func nameFilter(dir bool) store.NotifyFilter {
	if dir {
		return store.NotifyDirName
	}
	return store.NotifyFileName
}

// dirEmpty reports whether the directory p has no entries. Callers hold s.mu.
func (s *Store) dirEmpty(p string) bool {
	d, err := s.fs.Open(p)
	if err != nil {
		return false
	}
	defer func() { _ = d.Close() }()
	names, _ := d.Readdirnames(1)
	return len(names) == 0
}
