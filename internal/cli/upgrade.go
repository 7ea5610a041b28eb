package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/internal/reconcile"
	"github.com/stencilhq/stencil/internal/ui"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Reconcile the project against the latest schema",
	Long: `Upgrade the project to the current schema version. Owned files are
regenerated when only their template changed, missing fragments are
merged into shared files, and deprecated paths whose content matches a
known past version are removed.

Every path the run will touch is snapshotted first. If anything fails
mid-run, the snapshot is restored byte for byte.`,
	Args: cobra.NoArgs,
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.Flags().String("root", "", "Project root directory (default: current directory)")
	upgradeCmd.Flags().String("schema", "", "Path to a schema manifest overriding the embedded one")
	upgradeCmd.Flags().BoolP("yes", "y", false, "Apply without confirmation")
	upgradeCmd.Flags().Bool("force", false, "Reconcile even when the schema version already matches")
	upgradeCmd.Flags().Bool("restore-backup", false, "Restore a stale backup from an interrupted run, then proceed")
	upgradeCmd.Flags().Bool("discard-backup", false, "Discard a stale backup from an interrupted run, then proceed")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(getStringFlag(cmd, "root"))
	if err != nil {
		return err
	}

	if err := resolveStaleBackup(root,
		getBoolFlag(cmd, "restore-backup"),
		getBoolFlag(cmd, "discard-backup")); err != nil {
		return err
	}

	var bar ui.ProgressBar
	observer := func(done, total int, a reconcile.Action) {
		if bar == nil {
			bar = deps.Progress.Bar("Applying", total)
		}
		bar.SetTitle(a.Path)
		bar.Increment(1)
	}

	eng, err := newEngine(root, getStringFlag(cmd, "schema"),
		reconcile.WithObserver(observer))
	if err != nil {
		return err
	}

	plan, err := eng.orch.Plan(cmd.Context(), reconcile.ModeUpgrade)
	if err != nil {
		return err
	}
	if !plan.HasWork() {
		if !getBoolFlag(cmd, "force") && eng.allAtVersion(eng.reg.Version()) {
			fmt.Printf("%s Schema %s already applied. Nothing to do.\n",
				symSuccess(), cliPrimary.Render(eng.reg.Version()))
			return nil
		}
		report, err := eng.orch.Run(cmd.Context(), reconcile.ModeUpgrade)
		if err != nil {
			return err
		}
		printSummary(report)
		return nil
	}

	if !getBoolFlag(cmd, "yes") && !deps.Headless.IsHeadless() {
		fmt.Printf("Pending changes for schema %s:\n", cliPrimary.Render(eng.reg.Version()))
		for _, p := range plan.MutatedPaths() {
			fmt.Printf("  %s %s\n", symProgress(), p)
		}
		ok, err := confirm("Apply these changes?", "A backup is taken first; a failed run restores it automatically.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%s Upgrade cancelled\n", symWarning())
			return nil
		}
	}

	report, err := eng.orch.Run(cmd.Context(), reconcile.ModeUpgrade)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		if report != nil && report.RolledBack {
			fmt.Printf("%s Upgrade failed and was rolled back: %v\n", symError(), err)
		} else {
			fmt.Printf("%s Upgrade failed: %v\n", symError(), err)
		}
		return err
	}

	printSummary(report)
	return nil
}
