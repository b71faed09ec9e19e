// Package commands implements the dittosmb command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/cmd/dittosmb/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dittosmb",
	Short: "dittosmb - SMB2 file server",
	Long: `dittosmb is an SMB 2.0.2/2.1 file server written in pure Go.

Shares are backed by memory or by a host directory and are declared in the
configuration file. Clients connect with any SMB2 client, e.g.

  smbclient //localhost/share -p 12445 -N

Use "dittosmb [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called by main.main.
func Execute() error {
	return rootCmd.Execute()
}

// SetBuildInfo records the values injected into main at link time.
func SetBuildInfo(version, commit, date string) {
	Version, Commit, Date = version, commit, date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittosmb/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(sharesCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
