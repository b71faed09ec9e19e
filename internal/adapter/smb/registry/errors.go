package registry

import "errors"

var (
	// ErrHandleSpaceExhausted is returned by Allocate when every persistent
	// ID is in use or reserved.
	ErrHandleSpaceExhausted = errors.New("registry: persistent handle space exhausted")

	// ErrNotReserved is returned by Register for an ID that Allocate did not
	// hand out, or that was already registered or released.
	ErrNotReserved = errors.New("registry: persistent id not reserved")

	ErrSessionExists = errors.New("registry: session already exists")
	ErrSessionClosed = errors.New("registry: session closed")
	ErrTreeExists    = errors.New("registry: tree id already connected")
)
