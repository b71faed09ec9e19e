package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/bytesize"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are escape sequences.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// setXDG points the default config location at a temp directory.
func setXDG(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// =============================================================================
// Load
// =============================================================================

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
shares:
  - name: scratch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 12445, cfg.Server.Port)
	assert.Equal(t, 8*bytesize.MiB, cfg.Server.MaxMessageSize)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeouts.Shutdown)
	assert.Equal(t, []string{"2.0.2", "2.1"}, cfg.Server.Dialects)
	assert.True(t, cfg.Auth.GuestAllowed())
	require.Len(t, cfg.Shares, 1)
	assert.Equal(t, "memory", cfg.Shares[0].Backend)
	assert.Equal(t, bytesize.TiB, cfg.Shares[0].Capacity)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoad_HumanReadableValues(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 445
  max_message_size: 2Mi
  max_read_size: 64Ki
  timeouts:
    idle: 90s
    shutdown: 5s
auth:
  allow_guest: false
  users: [alice, bob]
shares:
  - name: docs
    backend: local
    path: "`+yamlSafePath(t.TempDir())+`"
    read_only: true
    capacity: 10GB
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 445, cfg.Server.Port)
	assert.Equal(t, 2*bytesize.MiB, cfg.Server.MaxMessageSize)
	assert.Equal(t, 64*bytesize.KiB, cfg.Server.MaxReadSize)
	assert.Equal(t, 90*time.Second, cfg.Server.Timeouts.Idle)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeouts.Shutdown)
	assert.False(t, cfg.Auth.GuestAllowed())
	assert.Equal(t, []string{"alice", "bob"}, cfg.Auth.Users)
	assert.True(t, cfg.Shares[0].ReadOnly)
	assert.Equal(t, 10*bytesize.GB, cfg.Shares[0].Capacity)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
shares:
  - name: share
`)
	t.Setenv("DITTOSMB_SERVER_PORT", "4445")
	t.Setenv("DITTOSMB_LOGGING_LEVEL", "warn")
	t.Setenv("DITTOSMB_SERVER_TIMEOUTS_IDLE", "1m")
	t.Setenv("DITTOSMB_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4445, cfg.Server.Port)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.Server.Timeouts.Idle)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_NoConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "a config without shares does not validate")
	assert.Contains(t, err.Error(), "at least one share")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[server]
port = 1445

[[shares]]
name = "toml"
backend = "memory"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 1445, cfg.Server.Port)
	assert.Equal(t, "toml", cfg.Shares[0].Name)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
shares:
  - name: a
    backend: nfs
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestMustLoad_MissingFile(t *testing.T) {
	t.Run("Explicit", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope.yaml")
		_, err := MustLoad(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dittosmb config init --config "+path)
	})

	t.Run("Default", func(t *testing.T) {
		setXDG(t)
		_, err := MustLoad("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no configuration file found")
	})
}

// =============================================================================
// Init / Save
// =============================================================================

func TestInitConfig(t *testing.T) {
	dir := setXDG(t)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dittosmb", "config.yaml"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{"# dittosmb Configuration File", "logging:", "server:", "auth:", "shares:", "metrics:", "telemetry:"} {
		assert.Contains(t, string(content), section)
	}

	// The generated file loads back to the defaults.
	cfg, err := MustLoad("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = InitConfig(true)
	assert.NoError(t, err)
}

func TestInitConfigToPath_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestSaveConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 445
	cfg.Shares = append(cfg.Shares, ShareConfig{Name: "ro", Backend: "memory", ReadOnly: true, Capacity: bytesize.GiB})

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_Default(t *testing.T) {
	assert.NoError(t, Validate(GetDefaultConfig()))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"InvalidLogFormat", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"PortTooLarge", func(c *Config) { c.Server.Port = 70000 }, "max"},
		{"NegativeConnections", func(c *Config) { c.Server.MaxConnections = -1 }, "min"},
		{"UnknownDialect", func(c *Config) { c.Server.Dialects = []string{"3.1.1"} }, "oneof"},
		{"BadGUID", func(c *Config) { c.Server.ServerGUID = "not-a-guid" }, "uuid"},
		{"ZeroShutdown", func(c *Config) { c.Server.Timeouts.Shutdown = 0 }, "gt"},
		{"TinyMessage", func(c *Config) { c.Server.MaxMessageSize = 32 }, "smaller than an SMB2 header"},
		{"HugeRead", func(c *Config) { c.Server.MaxReadSize = 8 * bytesize.GiB }, "32 bits"},
		{"NoShares", func(c *Config) { c.Shares = nil }, "at least one share"},
		{"UnnamedShare", func(c *Config) { c.Shares[0].Name = "" }, "required"},
		{"ShareNameSyntax", func(c *Config) { c.Shares[0].Name = "a/b" }, "contains one of"},
		{"UnknownBackend", func(c *Config) { c.Shares[0].Backend = "s3" }, "oneof"},
		{"LocalWithoutPath", func(c *Config) { c.Shares[0].Backend = "local" }, "requires a path"},
		{"MemoryWatchExternal", func(c *Config) { c.Shares[0].WatchExternal = true }, "requires the local backend"},
		{"DuplicateShareIgnoringCase", func(c *Config) {
			c.Shares = append(c.Shares, ShareConfig{Name: "SHARE", Backend: "memory"})
		}, "duplicate share name"},
		{"MetricsListen", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Listen = "9090"
		}, "metrics.listen"},
		{"TelemetryWithoutEndpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "endpoint is required"},
		{"SampleRate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "lte"},
		{"ProfileType", func(c *Config) {
			c.Telemetry.Profiling.Enabled = true
			c.Telemetry.Profiling.ProfileTypes = []string{"cpu", "gpu"}
		}, "unknown profile type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		require.NoError(t, Validate(cfg), level)
		assert.Equal(t, level, cfg.Logging.Level, "Validate does not normalize")
	}

	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	deny := false
	cfg := &Config{
		Server: ServerConfig{Port: 445, Dialects: []string{"2.1"}},
		Auth:   AuthConfig{AllowGuest: &deny},
		Shares: []ShareConfig{{Name: "x", Backend: "LOCAL", Path: "/srv"}},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, 445, cfg.Server.Port)
	assert.Equal(t, []string{"2.1"}, cfg.Server.Dialects)
	assert.False(t, cfg.Auth.GuestAllowed())
	assert.Equal(t, "local", cfg.Shares[0].Backend)
}

// =============================================================================
// Conversions
// =============================================================================

func TestHandlerConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	guid := uuid.New()
	cfg.Server.ServerGUID = guid.String()
	cfg.Server.Dialects = []string{"2.1"}
	cfg.Server.MaxOpenFiles = 16

	hc, err := cfg.HandlerConfig()
	require.NoError(t, err)
	assert.Equal(t, []types.Dialect{types.Dialect0210}, hc.Dialects)
	assert.Equal(t, guid, hc.ServerGUID)
	assert.EqualValues(t, bytesize.MiB, hc.MaxReadSize)
	assert.EqualValues(t, 16, hc.MaxOpenFiles)

	cfg.Server.ServerGUID = ""
	hc, err = cfg.HandlerConfig()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, hc.ServerGUID, "left for the handler to randomize")

	cfg.Server.Dialects = []string{"3.0"}
	_, err = cfg.HandlerConfig()
	assert.Error(t, err)
}

func TestTransportConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.BindAddress = "127.0.0.1"

	tc := cfg.TransportConfig()
	assert.Equal(t, "127.0.0.1", tc.BindAddress)
	assert.Equal(t, 12445, tc.Port)
	assert.Equal(t, 8<<20, tc.MaxMessageSize)
	assert.Equal(t, cfg.Server.Timeouts.Idle, tc.Timeouts.Idle)
	assert.NoError(t, tc.Validate())
}

func TestAuthOptions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.Users = []string{"alice"}
	cfg.Auth.ComputerName = "FILER"

	opts := cfg.AuthOptions()
	assert.True(t, opts.AllowGuest)
	assert.Equal(t, []string{"alice"}, opts.Users)
	assert.Equal(t, "WORKGROUP", opts.TargetName)
	assert.Equal(t, "FILER", opts.ComputerName)
}

func TestTelemetryConfigs(t *testing.T) {
	cfg := GetDefaultConfig()

	tc := cfg.TracingConfig("1.2.3")
	assert.False(t, tc.Enabled)
	assert.True(t, tc.Insecure)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, 1.0, tc.SampleRate)

	pc := cfg.ProfilingConfig("1.2.3")
	assert.Equal(t, "http://localhost:4040", pc.Endpoint)
	assert.Contains(t, pc.ProfileTypes, "cpu")
}

func TestLoggerConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "json"

	lc := cfg.LoggerConfig()
	assert.Equal(t, "INFO", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "stdout", lc.Output)
}

// =============================================================================
// Shares
// =============================================================================

func TestBuildShares(t *testing.T) {
	root := t.TempDir()
	cfg := GetDefaultConfig()
	cfg.Shares = append(cfg.Shares, ShareConfig{
		Name:     "docs",
		Backend:  "local",
		Path:     filepath.Join(root, "docs"),
		ReadOnly: true,
	})
	ApplyDefaults(cfg)

	shares, err := BuildShares(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shares.Close() })

	require.Len(t, shares.List, 2)
	assert.Equal(t, "share", shares.List[0].Name)
	assert.False(t, shares.List[0].ReadOnly)
	assert.Equal(t, "docs", shares.List[1].Name)
	assert.True(t, shares.List[1].ReadOnly)
	assert.DirExists(t, filepath.Join(root, "docs"), "local share root is created")
}

func TestBuildShares_Failure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	cfg := GetDefaultConfig()
	cfg.Shares = append(cfg.Shares, ShareConfig{Name: "bad", Backend: "local", Path: filepath.Join(file, "sub")})

	_, err := BuildShares(cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), `"bad"`))
}
