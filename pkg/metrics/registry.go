// Package metrics owns the Prometheus registry and the HTTP server that
// exposes it together with the health probes.
//
// Metrics are optional. Until InitRegistry is called GetRegistry returns
// nil and components built from it record nothing.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := smb.NewMetrics(metrics.GetRegistry(), handler)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry with the Go runtime and process
// collectors. Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil before InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// RegisterOrReuse registers c with reg. If an identical collector is
// already registered, the existing one is returned so a restarted server
// keeps exporting the same series. Any other registration error panics.
func RegisterOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
