package fsstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store"
)

// externalWatcher forwards host filesystem events under root to the hub.
// fsnotify watches are not recursive, so every directory is added on
// start and whenever one is created.
type externalWatcher struct {
	root    string
	hub     *watchHub
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

func newExternalWatcher(s *Store, root string) (*externalWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsstore: create watcher: %w", err)
	}
	w := &externalWatcher{root: abs, hub: s.hub, watcher: fw, done: make(chan struct{})}
	if err := w.addTree(abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *externalWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				return fmt.Errorf("fsstore: watch %s: %w", p, err)
			}
		}
		return nil
	})
}

func (w *externalWatcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("fsnotify error", "root", w.root, logger.KeyError, err)
		}
	}
}

func (w *externalWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	p := "/" + filepath.ToSlash(rel)
	names := store.NotifyFileName | store.NotifyDirName

	switch {
	case ev.Has(fsnotify.Create):
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addTree(ev.Name)
		}
		w.hub.dispatch([]event{{action: store.ActionAdded, path: p, filter: names}})
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.hub.dispatch([]event{{action: store.ActionRemoved, path: p, filter: names}})
	case ev.Has(fsnotify.Write):
		w.hub.dispatch([]event{{action: store.ActionModified, path: p, filter: store.NotifySize | store.NotifyLastWrite}})
	case ev.Has(fsnotify.Chmod):
		w.hub.dispatch([]event{{action: store.ActionModified, path: p, filter: store.NotifyAttributes}})
	}
}

// Close stops the watcher and waits for its event loop to exit.
func (w *externalWatcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
