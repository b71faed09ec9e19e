package fsstore

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/marmos91/dittosmb/pkg/store"
)

// Rename moves the file or directory behind h to newPath.
func (s *Store) Rename(ctx context.Context, sh store.Handle, newPath string, replaceIfExists bool) error {
	h, err := s.lookup(sh)
	if err != nil {
		return err
	}
	dst, err := store.NormalizePath(newPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src := h.Path()
	if src == "/" {
		return store.NewPathError("rename", src, store.ErrAccessDenied)
	}
	if dst == src {
		return nil
	}
	if strings.HasPrefix(dst, src+"/") {
		return store.NewPathError("rename", dst, store.ErrInvalidArg)
	}
	if err := s.prepareTarget("rename", dst, replaceIfExists); err != nil {
		return err
	}
	if s.opensUnder(src) > 1 && h.dir {
		return store.NewPathError("rename", src, store.ErrAccessDenied)
	}

	if err := s.fs.Rename(src, dst); err != nil {
		return mapFsError("rename", src, err)
	}
	s.movePrefix(src, dst)

	f := nameFilter(h.dir)
	s.publish(
		event{action: store.ActionRenamedOldName, path: src, filter: f},
		event{action: store.ActionRenamedNewName, path: dst, filter: f},
	)
	return nil
}

// Link creates linkPath as a hard link to the file behind h. Only the
// local backend supports hard links.
func (s *Store) Link(ctx context.Context, sh store.Handle, linkPath string, replaceIfExists bool) error {
	h, err := s.lookup(sh)
	if err != nil {
		return err
	}
	if h.dir {
		return store.NewPathError("link", h.Path(), store.ErrIsDirectory)
	}
	dst, err := store.NormalizePath(linkPath)
	if err != nil {
		return err
	}
	base, ok := s.fs.(*afero.BasePathFs)
	if !ok {
		return store.NewPathError("link", dst, store.ErrNotSupported)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src := h.Path()
	if dst == src {
		return nil
	}
	if err := s.prepareTarget("link", dst, replaceIfExists); err != nil {
		return err
	}
	realSrc, err := base.RealPath(src)
	if err != nil {
		return mapFsError("link", src, err)
	}
	realDst, err := base.RealPath(dst)
	if err != nil {
		return mapFsError("link", dst, err)
	}
	if err := os.Link(realSrc, realDst); err != nil {
		return mapFsError("link", dst, err)
	}
	s.ids[dst] = s.fileID(src)

	s.publish(event{action: store.ActionAdded, path: dst, filter: store.NotifyFileName})
	return nil
}

// prepareTarget checks that dst can be created, removing an existing file
// when replace is set. Callers hold s.mu.
func (s *Store) prepareTarget(op, dst string, replace bool) error {
	parent, err := s.fs.Stat(store.Parent(dst))
	if err != nil || !parent.IsDir() {
		return store.NewPathError(op, dst, store.ErrPathNotFound)
	}
	fi, err := s.fs.Stat(dst)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return mapFsError(op, dst, err)
	}
	if !replace {
		return store.NewPathError(op, dst, store.ErrExists)
	}
	if fi.IsDir() || s.opens[dst] > 0 || s.attrs[dst]&readOnlyAttr != 0 {
		return store.NewPathError(op, dst, store.ErrAccessDenied)
	}
	if err := s.fs.Remove(dst); err != nil {
		return mapFsError(op, dst, err)
	}
	s.forget(dst)
	s.publish(event{action: store.ActionRemoved, path: dst, filter: store.NotifyFileName})
	return nil
}

// opensUnder counts open handles on p and anything below it. Callers hold s.mu.
func (s *Store) opensUnder(p string) int {
	n := 0
	for op, c := range s.opens {
		if op == p || strings.HasPrefix(op, p+"/") {
			n += c
		}
	}
	return n
}

// SetDeleteOnClose marks or unmarks the path behind h for deletion when
// its last handle closes.
func (s *Store) SetDeleteOnClose(ctx context.Context, sh store.Handle, deleteOnClose bool) error {
	h, err := s.lookup(sh)
	if err != nil {
		return err
	}
	p := h.Path()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !deleteOnClose {
		delete(s.pending, p)
		return nil
	}
	if p == "/" || s.attrs[p]&readOnlyAttr != 0 {
		return store.NewPathError("delete", p, store.ErrAccessDenied)
	}
	if h.dir && !s.dirEmpty(p) {
		return store.NewPathError("delete", p, store.ErrNotEmpty)
	}
	s.pending[p] = true
	return nil
}
