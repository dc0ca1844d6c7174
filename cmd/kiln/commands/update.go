package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/adapters/config"
)

func (c *CLI) newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [dir]",
		Short: "Resolve dependencies and rewrite " + config.LockfileName,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.Update(cmd.Context(), projectDir(args))
			if err != nil {
				return err
			}
			if result.ResolvedDependencies == 0 && result.ResolvedPlugins == 0 {
				cmd.Println("already up to date")
				return nil
			}
			cmd.Printf("updated %d dependencies and %d plugin artifacts\n",
				result.ResolvedDependencies, result.ResolvedPlugins)
			return nil
		},
	}
}
