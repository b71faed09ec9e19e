package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittosmb/internal/telemetry"
)

// validate is the singleton validator instance
var validate = validator.New()

// invalidShareChars are rejected in share names; they are path or wildcard
// syntax on the client side.
const invalidShareChars = `\/:*?"<>|`

// Validate checks cfg with struct tags and then with the rules that tags
// cannot express.
//
// Log level normalization happens in ApplyDefaults, not here, so both
// "info" and "INFO" pass.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if len(cfg.Shares) == 0 {
		return errors.New("shares: at least one share must be configured")
	}

	names := make(map[string]int, len(cfg.Shares))
	for i, share := range cfg.Shares {
		if strings.ContainsAny(share.Name, invalidShareChars) {
			return fmt.Errorf("shares[%d]: name %q contains one of %s", i, share.Name, invalidShareChars)
		}
		// Tree connect matches names case-insensitively.
		key := strings.ToLower(share.Name)
		if j, ok := names[key]; ok {
			return fmt.Errorf("shares[%d]: duplicate share name %q (also shares[%d])", i, share.Name, j)
		}
		names[key] = i

		switch share.Backend {
		case "local":
			if share.Path == "" {
				return fmt.Errorf("shares[%d]: local backend requires a path", i)
			}
		case "memory":
			if share.WatchExternal {
				return fmt.Errorf("shares[%d]: watch_external requires the local backend", i)
			}
		default:
			return fmt.Errorf("shares[%d]: unknown backend %q", i, share.Backend)
		}
	}

	srv := cfg.Server
	if srv.MaxMessageSize != 0 && srv.MaxMessageSize < 64 {
		return fmt.Errorf("server.max_message_size: %d is smaller than an SMB2 header", srv.MaxMessageSize)
	}
	for name, size := range map[string]uint64{
		"max_read_size":     uint64(srv.MaxReadSize),
		"max_write_size":    uint64(srv.MaxWriteSize),
		"max_transact_size": uint64(srv.MaxTransactSize),
	} {
		if size > 1<<32-1 {
			return fmt.Errorf("server.%s: %d does not fit in 32 bits", name, size)
		}
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry: endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled {
		if cfg.Telemetry.Profiling.Endpoint == "" {
			return errors.New("telemetry.profiling: endpoint is required when profiling is enabled")
		}
		if _, err := telemetry.ParseProfileTypes(cfg.Telemetry.Profiling.ProfileTypes); err != nil {
			return fmt.Errorf("telemetry.profiling.profile_types: %w", err)
		}
	}

	return nil
}

// formatValidationError reports the first validator failure with its
// namespace, e.g. "Config.Server.Port".
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
