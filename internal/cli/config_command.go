package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"smallsh/internal/ui"
)

// NewConfigCommand creates the 'config' subcommand.
func NewConfigCommand(fs afero.Fs, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(fs, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.HeaderColor("Effective configuration:"))
			if opts.configFile != "" {
				fmt.Fprintln(out, ui.DetailColor("from "+opts.configFile))
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Setting", "Value"})
			table.SetBorder(true)
			table.SetAutoFormatHeaders(false)
			table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
			table.AppendBulk(cfg.Rows())
			table.Render()
			return nil
		},
	}
}
