package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
	"github.com/marmos91/dittosmb/pkg/config"
)

var sharesOutput string

var sharesCmd = &cobra.Command{
	Use:   "shares",
	Short: "Inspect configured shares",
}

var sharesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the shares declared in the configuration",
	Long: `List the shares declared in the configuration file.

Examples:
  dittosmb shares list
  dittosmb shares list --output json`,
	Args: cobra.NoArgs,
	RunE: runSharesList,
}

func init() {
	sharesListCmd.Flags().StringVarP(&sharesOutput, "output", "o", "table", "Output format (table|json|yaml)")
	sharesCmd.AddCommand(sharesListCmd)
}

// shareList renders config.ShareConfig entries as a table.
type shareList []config.ShareConfig

func (l shareList) Headers() []string {
	return []string{"NAME", "BACKEND", "PATH", "READ ONLY", "WATCH EXTERNAL", "CAPACITY"}
}

func (l shareList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		path := s.Path
		if path == "" {
			path = "-"
		}
		rows = append(rows, []string{
			s.Name,
			s.Backend,
			path,
			strconv.FormatBool(s.ReadOnly),
			strconv.FormatBool(s.WatchExternal),
			s.Capacity.String(),
		})
	}
	return rows
}

func runSharesList(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(sharesOutput)
	if err != nil {
		return err
	}
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	return output.Print(cmd.OutOrStdout(), format, shareList(cfg.Shares))
}
