package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittosmb/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults and explicit values are preserved.
// The log level is normalized to uppercase.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	for i := range cfg.Shares {
		applyShareDefaults(&cfg.Shares[i])
	}
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 12445
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 8 * bytesize.MiB
	}
	if cfg.Timeouts.Read == 0 {
		cfg.Timeouts.Read = 5 * time.Minute
	}
	if cfg.Timeouts.Write == 0 {
		cfg.Timeouts.Write = 30 * time.Second
	}
	if cfg.Timeouts.Idle == 0 {
		cfg.Timeouts.Idle = 5 * time.Minute
	}
	if cfg.Timeouts.Shutdown == 0 {
		cfg.Timeouts.Shutdown = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
	if len(cfg.Dialects) == 0 {
		cfg.Dialects = []string{"2.0.2", "2.1"}
	}
	if cfg.MaxReadSize == 0 {
		cfg.MaxReadSize = bytesize.MiB
	}
	if cfg.MaxWriteSize == 0 {
		cfg.MaxWriteSize = bytesize.MiB
	}
	if cfg.MaxTransactSize == 0 {
		cfg.MaxTransactSize = bytesize.MiB
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.AllowGuest == nil {
		allow := true
		cfg.AllowGuest = &allow
	}
	if cfg.TargetName == "" {
		cfg.TargetName = "WORKGROUP"
	}
}

func applyShareDefaults(cfg *ShareConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.Capacity == 0 {
		cfg.Capacity = bytesize.TiB
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.Insecure == nil {
		insecure := true
		cfg.Insecure = &insecure
	}
	// A zero rate is indistinguishable from "unset"; use enabled: false to
	// turn tracing off.
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// GetDefaultConfig returns a Config with all defaults applied and a single
// in-memory share named "share".
func GetDefaultConfig() *Config {
	cfg := &Config{
		Shares: []ShareConfig{
			{Name: "share", Backend: "memory"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
