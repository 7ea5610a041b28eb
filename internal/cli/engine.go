package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stencilhq/stencil/internal/assets"
	"github.com/stencilhq/stencil/internal/backup"
	"github.com/stencilhq/stencil/internal/config"
	"github.com/stencilhq/stencil/internal/manifest"
	"github.com/stencilhq/stencil/internal/reconcile"
	"github.com/stencilhq/stencil/internal/schema"
	"github.com/stencilhq/stencil/internal/template"
	"github.com/stencilhq/stencil/pkg/version"
)

// engine bundles everything a command needs to reconcile one project.
type engine struct {
	root string
	reg  *schema.Registry
	man  manifest.Manager
	orch *reconcile.Orchestrator
}

// resolveRoot picks the project root from the --root flag or falls back
// to the working directory.
func resolveRoot(flagValue string) (string, error) {
	if flagValue != "" {
		abs, err := filepath.Abs(flagValue)
		if err != nil {
			return "", fmt.Errorf("resolve project root: %w", err)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

// newEngine loads the schema and manifest and wires the orchestrator.
// schemaPath, when non-empty, overrides the embedded schema.
func newEngine(root, schemaPath string, opts ...reconcile.Option) (*engine, error) {
	var (
		reg *schema.Registry
		err error
	)
	if schemaPath != "" {
		reg, err = schema.LoadFile(schemaPath, assets.SchemaDefinition())
	} else {
		reg, err = schema.Load(assets.Schema(), assets.SchemaDefinition())
	}
	if err != nil {
		return nil, err
	}

	man := manifest.NewManager()
	if _, err := man.Load(root); err != nil {
		return nil, err
	}

	// An existing project config pins the name and timestamp chosen at
	// setup, so re-renders stay stable across invocations.
	ctxOpts := []template.ContextOption{
		template.WithVersions(version.GetVersion(), reg.Version()),
	}
	if cfg, found, err := config.Load(root); err != nil {
		return nil, err
	} else if found {
		if cfg.Project.Name != "" {
			ctxOpts = append(ctxOpts, template.WithProjectName(cfg.Project.Name))
		}
		if cfg.Project.InitializedAt != "" {
			ctxOpts = append(ctxOpts, template.WithInitializedAt(cfg.Project.InitializedAt))
		}
	}

	renderCtx := template.NewRenderContext(root, ctxOpts...)
	source := template.NewSource(assets.Templates(), renderCtx)

	opts = append([]reconcile.Option{
		reconcile.WithLogger(deps.Logger),
		reconcile.WithToolVersion(version.GetVersion()),
	}, opts...)

	return &engine{
		root: root,
		reg:  reg,
		man:  man,
		orch: reconcile.New(root, reg, man, source, opts...),
	}, nil
}

// allAtVersion reports whether every tracked path was applied at the
// given schema version. Used for the upgrade fast path.
func (e *engine) allAtVersion(v string) bool {
	paths := e.man.Paths()
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		rec, ok := e.man.Get(p)
		if !ok || rec.SchemaVersion != v {
			return false
		}
	}
	return true
}

// resolveStaleBackup handles a pending snapshot left by an interrupted
// run: interactively it asks, headless it requires an explicit flag.
func resolveStaleBackup(root string, restoreFlag, discardFlag bool) error {
	stale, err := backup.FindStale(root)
	if err != nil {
		return err
	}
	if stale == nil {
		return nil
	}

	fmt.Printf("%s Found an unfinished run from %s (backup at %s)\n",
		symWarning(), stale.Meta.Timestamp, stale.Dir)

	switch {
	case restoreFlag:
		if err := stale.Restore(root); err != nil {
			return fmt.Errorf("restore backup: %w", err)
		}
		fmt.Printf("%s Previous state restored\n", symSuccess())
		return nil
	case discardFlag:
		if err := stale.Discard(); err != nil {
			return fmt.Errorf("discard backup: %w", err)
		}
		fmt.Printf("%s Stale backup discarded\n", symSuccess())
		return nil
	}

	if deps.Headless.IsHeadless() {
		return fmt.Errorf("stale backup at %s: re-run with --restore-backup or --discard-backup", stale.Dir)
	}

	restore, err := confirm(
		"Restore the previous state?",
		"A prior run was interrupted mid-apply. Restoring rewinds the project to the state before that run; discarding keeps the tree as it is now.",
	)
	if err != nil {
		return err
	}
	if restore {
		if err := stale.Restore(root); err != nil {
			return fmt.Errorf("restore backup: %w", err)
		}
		fmt.Printf("%s Previous state restored\n", symSuccess())
	} else {
		if err := stale.Discard(); err != nil {
			return fmt.Errorf("discard backup: %w", err)
		}
		fmt.Printf("%s Stale backup discarded\n", symSuccess())
	}
	return nil
}

// printSummary writes the human-readable one-line-per-count summary.
func printSummary(report *reconcile.Report) {
	fmt.Printf("\n%s %s complete (schema %s)\n",
		symSuccess(), report.Mode, cliPrimary.Render(report.SchemaVersion))
	if report.Created > 0 {
		fmt.Printf("  %s %d created\n", symSuccess(), report.Created)
	}
	if report.Updated > 0 {
		fmt.Printf("  %s %d updated\n", symSuccess(), report.Updated)
	}
	if report.Merged > 0 {
		fmt.Printf("  %s %d merged\n", symSuccess(), report.Merged)
	}
	if report.Deleted > 0 {
		fmt.Printf("  %s %d deleted\n", symSuccess(), report.Deleted)
	}
	if report.Unchanged > 0 {
		fmt.Printf("  %s %d unchanged\n", symProgress(), report.Unchanged)
	}
	if report.Drifted > 0 {
		fmt.Printf("  %s %d drifted (kept your changes, run 'stencil check' for diffs)\n", symWarning(), report.Drifted)
	}
	if report.Blocked > 0 {
		fmt.Printf("  %s %d blocked\n", symError(), report.Blocked)
		for _, e := range report.Entries {
			if e.Action == "skip-blocked" {
				fmt.Printf("    %s %s: %s\n", symError(), e.Path, e.Detail)
			}
		}
	}
}
