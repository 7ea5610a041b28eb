package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/internal/backup"
	"github.com/stencilhq/stencil/internal/reconcile"
)

// errChecksFailed maps blocked findings to a nonzero exit code without
// printing a second error message.
var errChecksFailed = errors.New("check found blocking issues")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report drift without changing anything",
	Long: `Check plans a full reconciliation and reports what it would do,
without writing a single byte. Suited for CI: the exit code is nonzero
only when blocked actions or a fatal error occurred, so user drift alone
does not fail a pipeline.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("root", "", "Project root directory (default: current directory)")
	checkCmd.Flags().String("schema", "", "Path to a schema manifest overriding the embedded one")
	checkCmd.Flags().Bool("json", false, "Emit the report as JSON")
	checkCmd.Flags().BoolP("quiet", "q", false, "Suppress output, set the exit code only")
}

func runCheck(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(getStringFlag(cmd, "root"))
	if err != nil {
		return err
	}

	// Check never mutates, so a stale backup is only warned about here.
	if stale, err := backup.FindStale(root); err == nil && stale != nil {
		fmt.Fprintf(os.Stderr, "%s Unfinished run from %s detected; run 'stencil upgrade --restore-backup' or '--discard-backup'\n",
			symWarning(), stale.Meta.Timestamp)
	}

	eng, err := newEngine(root, getStringFlag(cmd, "schema"))
	if err != nil {
		return err
	}

	report, err := eng.orch.Run(cmd.Context(), reconcile.ModeCheck)
	if err != nil {
		return err
	}

	switch {
	case getBoolFlag(cmd, "quiet"):
	case getBoolFlag(cmd, "json"):
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Println(string(data))
	default:
		if err := renderReport(report); err != nil {
			return err
		}
	}

	if report.HasBlocking() {
		cmd.SilenceErrors = true
		return errChecksFailed
	}
	return nil
}

// renderReport prints the markdown report, styled when stdout is a
// terminal.
func renderReport(report *reconcile.Report) error {
	md := report.Markdown()

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Print(md)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	fmt.Print(out)
	return nil
}
