package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with every setting at its default value and
a single in-memory share named "share".

Examples:
  # Write to $XDG_CONFIG_HOME/dittosmb/config.yaml
  dittosmb config init

  # Write to a custom location, replacing an existing file
  dittosmb config init --config ./dittosmb.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(path, initForce); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}
