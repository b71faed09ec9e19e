// Package fsstore implements store.Store on an afero filesystem.
//
// The memory backend keeps the whole share in a MemMapFs and is used for
// scratch shares and tests. The local backend exposes a host directory
// through a BasePathFs, so paths can never escape the share root.
//
// Changes made through the store are published to pending watches. With
// WatchExternal set on a local share, an fsnotify watcher on the host
// directory drives notifications instead, so edits made outside the server
// are reported as well.
package fsstore

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittosmb/pkg/store"
)

// Backend selects the filesystem behind a Store.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendLocal  Backend = "local"
)

// DefaultCapacity is the volume size reported when Options.Capacity is zero.
const DefaultCapacity = 1 << 40

// Options configures a Store.
type Options struct {
	Name    string
	Backend Backend

	// Path is the host directory of a local share. It is created if missing.
	Path string

	// WatchExternal reports changes made outside the server. Local only.
	WatchExternal bool

	// Capacity is the size reported for the volume, in bytes.
	Capacity uint64
}

// Store is an afero-backed store.Store and store.Notifier.
type Store struct {
	name      string
	backend   Backend
	fs        afero.Fs
	capacity  uint64
	createdAt time.Time
	serial    uint32

	mu      sync.Mutex
	nextID  uint64
	ids     map[string]uint64
	created map[string]time.Time
	attrs   map[string]uint32
	opens   map[string]int
	pending map[string]bool
	handles map[*handle]struct{}

	hub      *watchHub
	external *externalWatcher
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Notifier = (*Store)(nil)
)

// New creates a Store for opts.
func New(opts Options) (*Store, error) {
	s := &Store{
		name:      opts.Name,
		backend:   opts.Backend,
		capacity:  opts.Capacity,
		createdAt: time.Now(),
		ids:       make(map[string]uint64),
		created:   make(map[string]time.Time),
		attrs:     make(map[string]uint32),
		opens:     make(map[string]int),
		pending:   make(map[string]bool),
		handles:   make(map[*handle]struct{}),
		hub:       newWatchHub(),
	}
	if s.capacity == 0 {
		s.capacity = DefaultCapacity
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(opts.Name))
	s.serial = h.Sum32()

	switch opts.Backend {
	case BackendMemory, "":
		s.backend = BackendMemory
		s.fs = afero.NewMemMapFs()
		if opts.WatchExternal {
			return nil, errors.New("fsstore: watch_external requires the local backend")
		}
	case BackendLocal:
		if opts.Path == "" {
			return nil, errors.New("fsstore: local backend requires a path")
		}
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("fsstore: create share root: %w", err)
		}
		s.fs = afero.NewBasePathFs(afero.NewOsFs(), opts.Path)
		if opts.WatchExternal {
			w, err := newExternalWatcher(s, opts.Path)
			if err != nil {
				return nil, err
			}
			s.external = w
		}
	default:
		return nil, fmt.Errorf("fsstore: unknown backend %q", opts.Backend)
	}

	if err := s.fs.MkdirAll("/", 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns an empty in-memory store.
func NewMemory(name string) *Store {
	s, err := New(Options{Name: name, Backend: BackendMemory})
	if err != nil {
		panic(err) // unreachable for the memory backend
	}
	return s
}

// Close stops the external watcher and closes every open handle.
func (s *Store) Close() error {
	var err error
	if s.external != nil {
		err = s.external.Close()
	}
	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[*handle]struct{})
	s.mu.Unlock()
	for h := range handles {
		if h.file != nil {
			_ = h.file.Close()
		}
	}
	return err
}

func (s *Store) Name() string { return s.name }

func (s *Store) Backend() Backend { return s.backend }

// handle is the store.Handle returned by CreateFile.
type handle struct {
	path   atomic.Pointer[string]
	dir    bool
	write  bool
	file   afero.File
	closed atomic.Bool
}

func newHandle(path string, dir, write bool, f afero.File) *handle {
	h := &handle{dir: dir, write: write, file: f}
	h.path.Store(&path)
	return h
}

func (h *handle) Path() string { return *h.path.Load() }

func (h *handle) IsDir() bool { return h.dir }

func (h *handle) setPath(p string) { h.path.Store(&p) }

// lookup validates that sh is a live handle of this store.
func (s *Store) lookup(sh store.Handle) (*handle, error) {
	h, ok := sh.(*handle)
	if !ok || h == nil || h.closed.Load() {
		return nil, store.ErrInvalidHandle
	}
	s.mu.Lock()
	_, live := s.handles[h]
	s.mu.Unlock()
	if !live {
		return nil, store.ErrInvalidHandle
	}
	return h, nil
}

// fileID returns the stable ID for p. Callers hold s.mu.
func (s *Store) fileID(p string) uint64 {
	id, ok := s.ids[p]
	if !ok {
		s.nextID++
		id = s.nextID
		s.ids[p] = id
	}
	return id
}

// movePrefix rewrites per-path state under oldPath to newPath. Callers hold s.mu.
func (s *Store) movePrefix(oldPath, newPath string) {
	rewrite := func(p string) (string, bool) {
		if p == oldPath {
			return newPath, true
		}
		if len(p) > len(oldPath) && p[:len(oldPath)] == oldPath && p[len(oldPath)] == '/' {
			return newPath + p[len(oldPath):], true
		}
		return "", false
	}
	for p, id := range s.ids {
		if np, ok := rewrite(p); ok {
			delete(s.ids, p)
			s.ids[np] = id
		}
	}
	for p, t := range s.created {
		if np, ok := rewrite(p); ok {
			delete(s.created, p)
			s.created[np] = t
		}
	}
	for p, a := range s.attrs {
		if np, ok := rewrite(p); ok {
			delete(s.attrs, p)
			s.attrs[np] = a
		}
	}
	for p, n := range s.opens {
		if np, ok := rewrite(p); ok {
			delete(s.opens, p)
			s.opens[np] = n
		}
	}
	for p := range s.pending {
		if np, ok := rewrite(p); ok {
			delete(s.pending, p)
			s.pending[np] = true
		}
	}
	for h := range s.handles {
		if np, ok := rewrite(h.Path()); ok {
			h.setPath(np)
		}
	}
}

// forget drops per-path state for a removed path. Callers hold s.mu.
func (s *Store) forget(p string) {
	delete(s.ids, p)
	delete(s.created, p)
	delete(s.attrs, p)
	delete(s.pending, p)
}

// mapFsError translates afero and os errors into store sentinels.
func mapFsError(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return store.NewPathError(op, p, store.ErrNotFound)
	case errors.Is(err, os.ErrExist):
		return store.NewPathError(op, p, store.ErrExists)
	case errors.Is(err, os.ErrPermission):
		return store.NewPathError(op, p, store.ErrAccessDenied)
	default:
		return store.NewPathError(op, p, err)
	}
}
