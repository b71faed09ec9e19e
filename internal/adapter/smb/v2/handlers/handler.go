package handlers

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/notify"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// Config is the protocol configuration of a Handler.
type Config struct {
	// Dialects lists the dialects the server accepts. Only 2.0.2 and 2.1
	// are implemented.
	Dialects []types.Dialect

	ServerGUID      uuid.UUID
	MaxTransactSize uint32
	MaxReadSize     uint32
	MaxWriteSize    uint32

	// MaxOpenFiles bounds the persistent handle space. Zero means the
	// full 64-bit space.
	MaxOpenFiles uint64
}

// DefaultConfig returns the configuration used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		Dialects:        []types.Dialect{types.Dialect0202, types.Dialect0210},
		MaxTransactSize: 1 << 20,
		MaxReadSize:     1 << 20,
		MaxWriteSize:    1 << 20,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if len(c.Dialects) == 0 {
		c.Dialects = d.Dialects
	}
	if c.ServerGUID == uuid.Nil {
		c.ServerGUID = uuid.New()
	}
	if c.MaxTransactSize == 0 {
		c.MaxTransactSize = d.MaxTransactSize
	}
	if c.MaxReadSize == 0 {
		c.MaxReadSize = d.MaxReadSize
	}
	if c.MaxWriteSize == 0 {
		c.MaxWriteSize = d.MaxWriteSize
	}
}

// Handler holds the server-wide state shared by every connection: the
// exported shares, the global open table and the pending change
// notifications.
//
// Thread safety: a Handler is shared by all connection goroutines. Every
// exported method is safe for concurrent use.
type Handler struct {
	Config    Config
	StartTime time.Time

	Opens  *registry.OpenTable
	Notify *notify.Registry
	Auth   *auth.GuestAuthenticator

	sharesMu sync.RWMutex
	shares   map[string]*registry.Share // lower-cased name -> share

	sessions atomic.Int64
}

// NewHandler returns a handler with no shares. authn may be nil, in which
// case every SESSION_SETUP fails.
func NewHandler(cfg Config, authn *auth.GuestAuthenticator) *Handler {
	cfg.applyDefaults()

	opens := registry.NewOpenTable()
	if cfg.MaxOpenFiles > 0 {
		opens = registry.NewOpenTableWithLimit(cfg.MaxOpenFiles)
	}
	reg := notify.NewRegistry()
	opens.SetCanceller(reg)

	return &Handler{
		Config:    cfg,
		StartTime: time.Now(),
		Opens:     opens,
		Notify:    reg,
		Auth:      authn,
		shares:    make(map[string]*registry.Share),
	}
}

// AddShare exports share. A share with the same name, ignoring case, is replaced.
func (h *Handler) AddShare(share *registry.Share) {
	h.sharesMu.Lock()
	defer h.sharesMu.Unlock()
	h.shares[strings.ToLower(share.Name)] = share
}

// GetShare looks a share up by name, ignoring case.
func (h *Handler) GetShare(name string) (*registry.Share, bool) {
	h.sharesMu.RLock()
	defer h.sharesMu.RUnlock()
	s, ok := h.shares[strings.ToLower(name)]
	return s, ok
}

// Shares returns the exported shares sorted by name.
func (h *Handler) Shares() []*registry.Share {
	h.sharesMu.RLock()
	out := make([]*registry.Share, 0, len(h.shares))
	for _, s := range h.shares {
		out = append(out, s)
	}
	h.sharesMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveSessions is the number of established sessions across all connections.
func (h *Handler) ActiveSessions() int { return int(h.sessions.Load()) }
