package fsstore

import (
	"context"
	"strings"
	"sync"

	"github.com/marmos91/dittosmb/pkg/store"
)

// event is a change to an absolute store path before it is rendered
// relative to a watch.
type event struct {
	action store.NotifyAction
	path   string
	filter store.NotifyFilter
}

type watch struct {
	token      store.Token
	h          *handle
	dir        string
	tree       bool
	filter     store.NotifyFilter
	bufferSize int
	complete   store.CompletionFunc
}

// watchHub holds pending one-shot watches.
type watchHub struct {
	mu      sync.Mutex
	next    store.Token
	watches map[store.Token]*watch
}

func newWatchHub() *watchHub {
	return &watchHub{watches: make(map[store.Token]*watch)}
}

func (hub *watchHub) add(w *watch) store.Token {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.next++
	w.token = hub.next
	hub.watches[w.token] = w
	return w.token
}

func (hub *watchHub) remove(token store.Token) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.watches[token]; !ok {
		return false
	}
	delete(hub.watches, token)
	return true
}

// dropHandle forgets every watch armed on h without completing it.
func (hub *watchHub) dropHandle(h *handle) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for token, w := range hub.watches {
		if w.h == h {
			delete(hub.watches, token)
		}
	}
}

func (hub *watchHub) len() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.watches)
}

// dispatch completes every watch matched by events. Completions run on
// their own goroutines so callers may hold locks.
func (hub *watchHub) dispatch(events []event) {
	type firing struct {
		w       *watch
		changes []store.Change
	}
	var fire []firing

	hub.mu.Lock()
	for token, w := range hub.watches {
		var changes []store.Change
		for _, ev := range events {
			if ev.filter&w.filter == 0 {
				continue
			}
			if name, ok := relativeName(w.dir, ev.path, w.tree); ok {
				changes = append(changes, store.Change{Action: ev.action, Name: name})
			}
		}
		if len(changes) > 0 {
			delete(hub.watches, token)
			fire = append(fire, firing{w: w, changes: changes})
		}
	}
	hub.mu.Unlock()

	for _, f := range fire {
		go func(f firing) {
			if f.w.bufferSize == 0 {
				f.w.complete(nil, store.ErrNotifyOverflow)
				return
			}
			f.w.complete(f.changes, nil)
		}(f)
	}
}

// relativeName renders p relative to the watched directory dir.
func relativeName(dir, p string, tree bool) (string, bool) {
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	if p == dir || !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rel := p[len(prefix):]
	if !tree && strings.Contains(rel, "/") {
		return "", false
	}
	return store.ToSMBPath(rel), true
}

// NotifyChange arms a one-shot watch on the directory handle.
func (s *Store) NotifyChange(ctx context.Context, sh store.Handle, filter store.NotifyFilter, watchTree bool, bufferSize int, complete store.CompletionFunc) (store.Token, error) {
	h, err := s.lookup(sh)
	if err != nil {
		return 0, err
	}
	if !h.dir {
		return 0, store.NewPathError("notify", h.Path(), store.ErrNotDirectory)
	}
	if filter == 0 || complete == nil {
		return 0, store.ErrInvalidArg
	}
	return s.hub.add(&watch{
		h:          h,
		dir:        h.Path(),
		tree:       watchTree,
		filter:     filter,
		bufferSize: bufferSize,
		complete:   complete,
	}), nil
}

// Cancel disarms a pending watch.
func (s *Store) Cancel(token store.Token) error {
	if !s.hub.remove(token) {
		return store.ErrNotFound
	}
	return nil
}

// PendingWatches reports the number of armed watches.
func (s *Store) PendingWatches() int { return s.hub.len() }

// publish reports changes made through the store. With an external watcher
// the host filesystem events are reported instead. Safe to call with s.mu held.
func (s *Store) publish(events ...event) {
	if s.external != nil {
		return
	}
	s.hub.dispatch(events)
}
