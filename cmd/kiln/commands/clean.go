package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [dir]",
		Short: "Remove build outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, _ := cmd.Flags().GetBool("cache")
			return c.app.Clean(projectDir(args), cache)
		},
	}
	cmd.Flags().Bool("cache", false, "Also empty the shared artifact store")
	return cmd
}
