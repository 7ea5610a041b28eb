package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/internal/reconcile"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove stencil's contributions from the project",
	Long: `Reset removes what stencil put into the project: owned files whose
content still matches what was applied, and the fragments stencil merged
into shared files. Files you have modified are left in place, and only
values stencil itself wrote are retracted from shared files.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().String("root", "", "Project root directory (default: current directory)")
	resetCmd.Flags().String("schema", "", "Path to a schema manifest overriding the embedded one")
	resetCmd.Flags().BoolP("yes", "y", false, "Reset without confirmation")
	resetCmd.Flags().Bool("restore-backup", false, "Restore a stale backup from an interrupted run, then proceed")
	resetCmd.Flags().Bool("discard-backup", false, "Discard a stale backup from an interrupted run, then proceed")
}

func runReset(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(getStringFlag(cmd, "root"))
	if err != nil {
		return err
	}

	if err := resolveStaleBackup(root,
		getBoolFlag(cmd, "restore-backup"),
		getBoolFlag(cmd, "discard-backup")); err != nil {
		return err
	}

	eng, err := newEngine(root, getStringFlag(cmd, "schema"))
	if err != nil {
		return err
	}

	plan, err := eng.orch.Plan(cmd.Context(), reconcile.ModeReset)
	if err != nil {
		return err
	}
	if !plan.HasWork() {
		fmt.Printf("%s Nothing to remove.\n", symSuccess())
		return nil
	}

	if !getBoolFlag(cmd, "yes") {
		if deps.Headless.IsHeadless() {
			return fmt.Errorf("reset deletes files; re-run with --yes to confirm")
		}
		fmt.Println("The following paths will be removed or rewritten:")
		for _, p := range plan.MutatedPaths() {
			fmt.Printf("  %s %s\n", symWarning(), p)
		}
		ok, err := confirm("Remove stencil from this project?", "Modified files are kept; only unmodified stencil content is removed.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%s Reset cancelled\n", symWarning())
			return nil
		}
	}

	report, err := eng.orch.Run(cmd.Context(), reconcile.ModeReset)
	if err != nil {
		fmt.Printf("%s Reset failed: %v\n", symError(), err)
		return err
	}

	printSummary(report)
	return nil
}
