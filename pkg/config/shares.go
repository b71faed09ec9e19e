package config

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/store/fsstore"
)

// Shares holds the stores opened for the configured shares.
type Shares struct {
	List   []*registry.Share
	stores []*fsstore.Store
}

// Close releases every store. Watchers on local shares are stopped.
func (s *Shares) Close() error {
	var errs []error
	for _, st := range s.stores {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildShares opens a store for every share in cfg. On failure the stores
// already opened are closed again.
func BuildShares(cfg *Config) (*Shares, error) {
	logger.Debug("Building shares from configuration", logger.KeyCount, len(cfg.Shares))

	out := &Shares{}
	for i, sc := range cfg.Shares {
		st, err := fsstore.New(storeOptions(sc))
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("shares[%d] %q: %w", i, sc.Name, err)
		}
		out.stores = append(out.stores, st)
		out.List = append(out.List, &registry.Share{
			Name:     sc.Name,
			Store:    st,
			ReadOnly: sc.ReadOnly,
		})

		logger.Info("Share ready",
			logger.KeyShare, sc.Name,
			logger.KeyBackend, sc.Backend,
			logger.KeyPath, sc.Path,
			"read_only", sc.ReadOnly,
			"watch_external", sc.WatchExternal)
	}
	return out, nil
}

func storeOptions(sc ShareConfig) fsstore.Options {
	return fsstore.Options{
		Name:          sc.Name,
		Backend:       fsstore.Backend(sc.Backend),
		Path:          sc.Path,
		WatchExternal: sc.WatchExternal,
		Capacity:      uint64(sc.Capacity),
	}
}
