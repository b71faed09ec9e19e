package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittosmb/internal/bytesize"
)

// Config represents the dittosmb configuration.
//
// Everything the server needs is static: the listener and protocol limits,
// the authentication policy, and the exported shares. There is no runtime
// control plane; changing a share means editing the file and restarting.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOSMB_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server configures the SMB listener and the protocol limits advertised
	// in NEGOTIATE.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Auth controls which SESSION_SETUP identities are accepted
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Shares lists the exported shares
	Shares []ShareConfig `mapstructure:"shares" validate:"dive" yaml:"shares"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig configures the SMB server.
type ServerConfig struct {
	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port. 445 needs elevated privileges on most systems.
	// Default: 12445
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// MaxConnections bounds concurrent client connections. 0 is unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// MaxMessageSize is the largest frame accepted from a client.
	// Supports human-readable formats: "8Mi", "1MB"
	// Default: 8Mi
	MaxMessageSize bytesize.ByteSize `mapstructure:"max_message_size" yaml:"max_message_size"`

	// Timeouts bounds the connection lifecycle
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// MetricsLogInterval is how often connection statistics are logged.
	// 0 disables the periodic log line.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0" yaml:"metrics_log_interval"`

	// Dialects lists the accepted dialects in dotted form.
	// Default: ["2.0.2", "2.1"]
	Dialects []string `mapstructure:"dialects" validate:"dive,oneof=2.0.2 2.02 2.1 2.10 0x0202 0x0210" yaml:"dialects"`

	// MaxReadSize, MaxWriteSize and MaxTransactSize are advertised in
	// NEGOTIATE and enforced on READ, WRITE, QUERY_DIRECTORY and friends.
	// Default: 1Mi each
	MaxReadSize     bytesize.ByteSize `mapstructure:"max_read_size" yaml:"max_read_size"`
	MaxWriteSize    bytesize.ByteSize `mapstructure:"max_write_size" yaml:"max_write_size"`
	MaxTransactSize bytesize.ByteSize `mapstructure:"max_transact_size" yaml:"max_transact_size"`

	// MaxOpenFiles bounds the number of simultaneously open handles across
	// all clients. 0 means no bound beyond the handle ID space.
	MaxOpenFiles uint64 `mapstructure:"max_open_files" yaml:"max_open_files"`

	// ServerGUID is the GUID reported in NEGOTIATE. A random one is
	// generated per process when empty.
	ServerGUID string `mapstructure:"server_guid" validate:"omitempty,uuid" yaml:"server_guid,omitempty"`
}

// TimeoutsConfig groups the connection timeouts.
type TimeoutsConfig struct {
	// Read is the maximum time to read one frame once it has started.
	Read time.Duration `mapstructure:"read" validate:"min=0" yaml:"read"`

	// Write is the maximum time to write one response.
	Write time.Duration `mapstructure:"write" validate:"min=0" yaml:"write"`

	// Idle closes connections that send nothing for this long.
	Idle time.Duration `mapstructure:"idle" validate:"min=0" yaml:"idle"`

	// Shutdown is how long Stop waits for connections to drain before
	// closing them.
	Shutdown time.Duration `mapstructure:"shutdown" validate:"gt=0" yaml:"shutdown"`
}

// AuthConfig controls SESSION_SETUP.
type AuthConfig struct {
	// AllowGuest accepts anonymous and unknown users as guests.
	// Default: true
	AllowGuest *bool `mapstructure:"allow_guest" yaml:"allow_guest"`

	// Users lists the user names that get an authenticated (non-guest)
	// session. Passwords are not verified.
	Users []string `mapstructure:"users" yaml:"users,omitempty"`

	// TargetName is the NetBIOS domain announced in the NTLM challenge.
	// Default: WORKGROUP
	TargetName string `mapstructure:"target_name" yaml:"target_name,omitempty"`

	// ComputerName is the NetBIOS computer name announced in the challenge.
	// Default: the host name
	ComputerName string `mapstructure:"computer_name" yaml:"computer_name,omitempty"`
}

// GuestAllowed reports the effective guest policy.
func (a AuthConfig) GuestAllowed() bool {
	return a.AllowGuest == nil || *a.AllowGuest
}

// ShareConfig describes one exported share.
type ShareConfig struct {
	// Name is the share name clients connect to (\\server\Name).
	// Matching is case-insensitive.
	Name string `mapstructure:"name" validate:"required,max=80" yaml:"name"`

	// Backend selects the storage: "memory" or "local".
	Backend string `mapstructure:"backend" validate:"required,oneof=memory local" yaml:"backend"`

	// Path is the host directory of a local share.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// ReadOnly rejects every mutating operation with ACCESS_DENIED
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// WatchExternal reports changes made outside the server to
	// CHANGE_NOTIFY watchers. Local backend only.
	WatchExternal bool `mapstructure:"watch_external" yaml:"watch_external"`

	// Capacity is the volume size reported to clients.
	// Default: 1Ti
	Capacity bytesize.ByteSize `mapstructure:"capacity" yaml:"capacity,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the HTTP address for /metrics and /health
	// Default: ":9090"
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, one span per SMB command is exported to an OTLP collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true
	Insecure *bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// InsecureTransport reports the effective insecure setting.
func (t TelemetryConfig) InsecureTransport() bool {
	return t.Insecure == nil || *t.Insecure
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing file is not an error: the defaults are returned, with
// environment overrides applied.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// AutomaticEnv only consults keys viper already knows about, so every
	// leaf key is bound explicitly. Env overrides then work without a file.
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load with instructions in the error when the file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  dittosmb config init\n\n"+
				"Or specify a custom config file:\n"+
				"  dittosmb <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  dittosmb config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// DITTOSMB_SERVER_PORT=445 overrides server.port
	v.SetEnvPrefix("DITTOSMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// bindEnvs binds every mapstructure key reachable from t. Slices of
// structs (shares) cannot be addressed by a single variable and are skipped.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct:
			bindEnvs(v, ft, key)
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Struct:
		default:
			_ = v.BindEnv(key)
		}
	}
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// so sizes can be written as "8Mi" or "1MB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration. Raw
// numbers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/dittosmb, ~/.config/dittosmb, or "."
// when neither can be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittosmb")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittosmb")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
