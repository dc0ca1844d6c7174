package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
)

const timePrecision = 10 * time.Millisecond

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build the project and its path dependencies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("target")
			profile, _ := cmd.Flags().GetString("profile")
			jobs, _ := cmd.Flags().GetInt("jobs")
			force, _ := cmd.Flags().GetBool("force")
			locked, _ := cmd.Flags().GetBool("locked")

			report, err := c.app.RunBuild(cmd.Context(), projectDir(args), app.BuildOptions{
				Target:  target,
				Profile: profile,
				Jobs:    jobs,
				Force:   force,
				Locked:  locked,
			})
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}
	cmd.Flags().StringP("target", "t", "", "Compilation target (defaults to the host target)")
	cmd.Flags().StringP("profile", "p", "", "Build profile: debug, release, debug-test, release-test")
	cmd.Flags().IntP("jobs", "j", 0, "Maximum parallel compilations (defaults to the CPU count)")
	cmd.Flags().BoolP("force", "f", false, "Recompile everything, ignoring the artifact store")
	cmd.Flags().Bool("locked", false, "Fail if the lockfile is missing or stale; never modify it")
	return cmd
}

func printReport(cmd *cobra.Command, report *domain.BuildReport) {
	for _, res := range report.Results {
		switch res.Status {
		case domain.UnitStatusFailed:
			cmd.PrintErrf("  %-8s %s\n    %v\n", res.Status, res.Unit, res.Err)
		case domain.UnitStatusSkipped:
			cmd.PrintErrf("  %-8s %s\n", res.Status, res.Unit)
		default:
			cmd.Printf("  %-8s %s (%s) %s\n", res.Status, res.Unit, res.Duration.Round(timePrecision), res.Output)
		}
		// Warnings are replayed even when the artifact came from the store.
		if res.Diagnostics != "" {
			cmd.PrintErrln(strings.TrimRight(res.Diagnostics, "\n"))
		}
	}

	counts := report.Counts()
	summary := fmt.Sprintf("%d compiled, %d fresh", counts[domain.UnitStatusCompiled], counts[domain.UnitStatusFresh])
	if report.Failed() {
		summary += fmt.Sprintf(", %d failed, %d skipped",
			counts[domain.UnitStatusFailed], counts[domain.UnitStatusSkipped])
	}
	cmd.Printf("%s/%s: %s in %s\n", report.Target, report.Profile, summary, report.Elapsed.Round(timePrecision))
}
