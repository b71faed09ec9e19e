package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
	"github.com/marmos91/dittosmb/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Examples:
  dittosmb config show
  dittosmb config show --output json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		return fmt.Errorf("config show supports yaml or json output")
	}

	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}
	return output.Print(cmd.OutOrStdout(), format, cfg)
}
