package smb

import (
	"fmt"
	"time"
)

// DefaultMaxMessageSize is the largest SMB2 frame accepted by default (8MB).
// It covers a 1MB READ/WRITE with room for compound chains.
const DefaultMaxMessageSize = 8 * 1024 * 1024

// DefaultPort is the unprivileged port used when none is configured. The
// standard SMB port, 445, requires root.
const DefaultPort = 12445

// TimeoutsConfig groups the transport timeouts.
type TimeoutsConfig struct {
	// Read bounds the time to read one complete frame once it has started.
	// 0 means no timeout.
	Read time.Duration `mapstructure:"read" yaml:"read" validate:"min=0"`

	// Write bounds the time to write one response frame. 0 means no timeout.
	Write time.Duration `mapstructure:"write" yaml:"write" validate:"min=0"`

	// Idle closes a connection that sends nothing for this long. 0 keeps
	// idle connections open.
	Idle time.Duration `mapstructure:"idle" yaml:"idle" validate:"min=0"`

	// Shutdown is how long Stop waits for connections before closing them.
	Shutdown time.Duration `mapstructure:"shutdown" yaml:"shutdown" validate:"required,gt=0"`
}

// Config holds the transport parameters of the SMB server.
//
// Default values (applied by NewServer if zero):
//   - Port: 12445
//   - MaxConnections: 0 (unlimited)
//   - MaxMessageSize: 8MB
//   - Timeouts.Read: 5m
//   - Timeouts.Write: 30s
//   - Timeouts.Idle: 5m
//   - Timeouts.Shutdown: 30s
//   - MetricsLogInterval: 5m
type Config struct {
	// BindAddress is the address to listen on. Empty binds all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port. 0 after defaults is never used; tests pass a
	// listener to ServeListener instead.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// MaxConnections bounds concurrent connections. Accepting blocks while
	// the limit is reached. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// MaxMessageSize bounds a single NetBIOS frame.
	MaxMessageSize int `mapstructure:"max_message_size" yaml:"max_message_size" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// MetricsLogInterval is the period of the connection summary log line.
	// Negative disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval"`
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = 5 * time.Minute
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.Timeouts.Idle == 0 {
		c.Timeouts.Idle = 5 * time.Minute
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("invalid max_message_size %d: must be >= 0", c.MaxMessageSize)
	}
	if c.MaxMessageSize > 0 && c.MaxMessageSize < 64 {
		return fmt.Errorf("invalid max_message_size %d: smaller than an SMB2 header", c.MaxMessageSize)
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		return fmt.Errorf("invalid timeouts %+v: must be >= 0", c.Timeouts)
	}
	if c.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("invalid timeouts.shutdown %v: must be > 0", c.Timeouts.Shutdown)
	}
	return nil
}
