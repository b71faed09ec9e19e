package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
	"github.com/marmos91/dittosmb/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dittosmb configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  dittosmb config validate

  # Validate specific config file
  dittosmb config validate --config /etc/dittosmb/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	path := configPath(cmd)
	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Server.Port == 445 {
		warnings = append(warnings, "port 445 usually requires elevated privileges")
	}
	if !cfg.Auth.GuestAllowed() && len(cfg.Auth.Users) == 0 {
		warnings = append(warnings, "guest access is disabled and no users are listed; every SESSION_SETUP will fail")
	}
	if cfg.Server.MaxMessageSize < cfg.Server.MaxWriteSize {
		warnings = append(warnings, "max_message_size is smaller than max_write_size; large writes will be rejected")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.PrintKeyValues(out, [][2]string{
		{"  Port", strconv.Itoa(cfg.Server.Port)},
		{"  Dialects", fmt.Sprint(cfg.Server.Dialects)},
		{"  Shares", strconv.Itoa(len(cfg.Shares))},
		{"  Guest access", strconv.FormatBool(cfg.Auth.GuestAllowed())},
		{"  Metrics", strconv.FormatBool(cfg.Metrics.Enabled)},
		{"  Log level", cfg.Logging.Level},
	})
}
