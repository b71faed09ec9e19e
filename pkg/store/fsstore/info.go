package fsstore

import (
	"context"
	"os"
	"sort"

	"github.com/spf13/afero"

	"github.com/marmos91/dittosmb/pkg/store"
)

// DOS attribute bits a client may set; the rest are derived.
const (
	readOnlyAttr  uint32 = 0x01
	settableAttrs uint32 = 0x01 | 0x02 | 0x04 | 0x20 // read-only, hidden, system, archive
	allocUnit            = 4096
)

func (s *Store) GetFileInfo(ctx context.Context, sh store.Handle) (*store.FileInfo, error) {
	h, err := s.lookup(sh)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statLocked(h.Path())
}

// statLocked builds the FileInfo for p. Callers hold s.mu.
func (s *Store) statLocked(p string) (*store.FileInfo, error) {
	fi, err := s.fs.Stat(p)
	if err != nil {
		return nil, mapFsError("stat", p, err)
	}
	return s.infoFrom(p, fi), nil
}

func (s *Store) infoFrom(p string, fi os.FileInfo) *store.FileInfo {
	mod := fi.ModTime()
	created, ok := s.created[p]
	if !ok || created.After(mod) {
		created = mod
	}
	info := &store.FileInfo{
		Name:           store.Base(p),
		Path:           p,
		ID:             s.fileID(p),
		IsDir:          fi.IsDir(),
		Attributes:     s.attrs[p],
		CreationTime:   created,
		LastAccessTime: mod,
		LastWriteTime:  mod,
		ChangeTime:     mod,
		NumberOfLinks:  1,
		DeletePending:  s.pending[p],
	}
	if !fi.IsDir() {
		info.Size = fi.Size()
		info.AllocationSize = (fi.Size() + allocUnit - 1) / allocUnit * allocUnit
	}
	return info
}

// SetBasicInfo applies the non-zero fields of info.
func (s *Store) SetBasicInfo(ctx context.Context, sh store.Handle, info store.BasicInfo) error {
	h, err := s.lookup(sh)
	if err != nil {
		return err
	}
	p := h.Path()

	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := s.fs.Stat(p)
	if err != nil {
		return mapFsError("setinfo", p, err)
	}

	var filter store.NotifyFilter
	if !info.LastWriteTime.IsZero() || !info.LastAccessTime.IsZero() {
		atime, mtime := info.LastAccessTime, info.LastWriteTime
		if atime.IsZero() {
			atime = fi.ModTime()
		}
		if mtime.IsZero() {
			mtime = fi.ModTime()
		}
		if err := s.fs.Chtimes(p, atime, mtime); err != nil {
			return mapFsError("chtimes", p, err)
		}
		filter |= store.NotifyLastWrite
	}
	if !info.CreationTime.IsZero() {
		s.created[p] = info.CreationTime
		filter |= store.NotifyCreation
	}
	if info.Attributes != 0 {
		s.attrs[p] = info.Attributes & settableAttrs
		filter |= store.NotifyAttributes
	}
	if filter != 0 {
		s.publish(event{action: store.ActionModified, path: p, filter: filter})
	}
	return nil
}

func (s *Store) QueryDirectory(ctx context.Context, sh store.Handle, pattern string) ([]store.FileInfo, error) {
	h, err := s.lookup(sh)
	if err != nil {
		return nil, err
	}
	if !h.dir {
		return nil, store.NewPathError("readdir", h.Path(), store.ErrNotDirectory)
	}
	p := h.Path()

	entries, err := afero.ReadDir(s.fs, p)
	if err != nil {
		return nil, mapFsError("readdir", p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.FileInfo, 0, len(entries))
	for _, fi := range entries {
		if !store.MatchPattern(pattern, fi.Name()) {
			continue
		}
		child := p + "/" + fi.Name()
		if p == "/" {
			child = "/" + fi.Name()
		}
		out = append(out, *s.infoFrom(child, fi))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetFileSystemInfo(ctx context.Context) (*store.FileSystemInfo, error) {
	var used uint64
	err := afero.Walk(s.fs, "/", func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !fi.IsDir() {
			used += uint64(fi.Size())
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	free := uint64(0)
	if used < s.capacity {
		free = s.capacity - used
	}
	return &store.FileSystemInfo{
		VolumeLabel:       s.name,
		SerialNumber:      s.serial,
		CreationTime:      s.createdAt,
		FileSystemName:    "NTFS",
		TotalBytes:        s.capacity,
		FreeBytes:         free,
		BytesPerSector:    512,
		SectorsPerUnit:    allocUnit / 512,
		CaseSensitive:     true,
		SupportsHardLinks: s.backend == BackendLocal,
	}, nil
}

// DeviceIOControl supports no control codes.
func (s *Store) DeviceIOControl(ctx context.Context, sh store.Handle, ctlCode uint32, input []byte, maxOutput int) ([]byte, error) {
	if _, err := s.lookup(sh); err != nil {
		return nil, err
	}
	return nil, store.ErrNotSupported
}
