package registry

import (
	"github.com/marmos91/dittosmb/pkg/store"
)

// Share is a named store exported to clients. One Share value is shared by
// every tree connection to it.
type Share struct {
	Name     string
	Store    store.Store
	ReadOnly bool
}

// Notifier returns the share's change notification capability, if its store
// has one.
func (s *Share) Notifier() (store.Notifier, bool) {
	if s == nil || s.Store == nil {
		return nil, false
	}
	n, ok := s.Store.(store.Notifier)
	return n, ok
}
