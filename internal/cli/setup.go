package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/internal/reconcile"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Apply the schema to a project for the first time",
	Long: `Set up stencil in a project. Creates the files the schema owns,
folds missing fragments into shared configuration files, and records
fingerprints so later runs can tell your edits from template changes.

Setup is additive: it never deletes anything and never overwrites
content you have changed.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().String("root", "", "Project root directory (default: current directory)")
	setupCmd.Flags().String("schema", "", "Path to a schema manifest overriding the embedded one")
	setupCmd.Flags().Bool("restore-backup", false, "Restore a stale backup from an interrupted run, then proceed")
	setupCmd.Flags().Bool("discard-backup", false, "Discard a stale backup from an interrupted run, then proceed")
}

func runSetup(cmd *cobra.Command, args []string) error {
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

	spin := deps.Progress.Spinner("Setting up stencil...")
	report, err := eng.orch.Run(cmd.Context(), reconcile.ModeSetup)
	spin.Stop()
	if err != nil {
		fmt.Printf("%s Setup failed: %v\n", symError(), err)
		return err
	}

	printSummary(report)
	return nil
}
