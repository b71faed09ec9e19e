package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/internal/telemetry"
	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/metrics"
)

// TransportConfig returns the listener settings for smb.NewServer.
func (c *Config) TransportConfig() smb.Config {
	s := c.Server
	return smb.Config{
		BindAddress:    s.BindAddress,
		Port:           s.Port,
		MaxConnections: s.MaxConnections,
		MaxMessageSize: int(s.MaxMessageSize),
		Timeouts: smb.TimeoutsConfig{
			Read:     s.Timeouts.Read,
			Write:    s.Timeouts.Write,
			Idle:     s.Timeouts.Idle,
			Shutdown: s.Timeouts.Shutdown,
		},
		MetricsLogInterval: s.MetricsLogInterval,
	}
}

// HandlerConfig returns the protocol settings for handlers.NewHandler.
func (c *Config) HandlerConfig() (handlers.Config, error) {
	s := c.Server
	hc := handlers.Config{
		MaxReadSize:     uint32(s.MaxReadSize),
		MaxWriteSize:    uint32(s.MaxWriteSize),
		MaxTransactSize: uint32(s.MaxTransactSize),
		MaxOpenFiles:    s.MaxOpenFiles,
	}
	for _, name := range s.Dialects {
		d, err := types.ParseDialect(name)
		if err != nil {
			return handlers.Config{}, fmt.Errorf("server.dialects: %w", err)
		}
		hc.Dialects = append(hc.Dialects, d)
	}
	if s.ServerGUID != "" {
		guid, err := uuid.Parse(s.ServerGUID)
		if err != nil {
			return handlers.Config{}, fmt.Errorf("server.server_guid: %w", err)
		}
		hc.ServerGUID = guid
	}
	return hc, nil
}

// AuthOptions returns the SESSION_SETUP policy.
func (c *Config) AuthOptions() auth.Options {
	computer := c.Auth.ComputerName
	if computer == "" {
		computer, _ = os.Hostname()
	}
	return auth.Options{
		AllowGuest:   c.Auth.GuestAllowed(),
		Users:        c.Auth.Users,
		TargetName:   c.Auth.TargetName,
		ComputerName: computer,
	}
}

// MetricsServerConfig returns the HTTP settings for metrics.NewServer.
func (c *Config) MetricsServerConfig() metrics.ServerConfig {
	return metrics.ServerConfig{Listen: c.Metrics.Listen}
}

// TracingConfig returns the OpenTelemetry settings for telemetry.Init.
func (c *Config) TracingConfig(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    "dittosmb",
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.InsecureTransport(),
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// ProfilingConfig returns the Pyroscope settings for telemetry.InitProfiling.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	p := c.Telemetry.Profiling
	return telemetry.ProfilingConfig{
		Enabled:        p.Enabled,
		ServiceName:    "dittosmb",
		ServiceVersion: version,
		Endpoint:       p.Endpoint,
		ProfileTypes:   p.ProfileTypes,
	}
}

// LoggerConfig converts the logging section for logger.Init.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}
