// Package reconcile drives a project tree toward the state a schema
// declares. A run moves through Planning, an optional backup, Applying,
// Verifying, and finally Committed or RolledBack. The plan is built
// once and never revised mid-run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stencilhq/stencil/internal/backup"
	"github.com/stencilhq/stencil/internal/defs"
	"github.com/stencilhq/stencil/internal/drift"
	"github.com/stencilhq/stencil/internal/manifest"
	"github.com/stencilhq/stencil/internal/materialize"
	"github.com/stencilhq/stencil/internal/merge"
	"github.com/stencilhq/stencil/internal/schema"
	"github.com/stencilhq/stencil/internal/sweep"
)

// Mode selects which plan an invocation builds.
type Mode int

const (
	// ModeSetup applies the schema additively. No deprecation sweep.
	ModeSetup Mode = iota
	// ModeUpgrade applies the full schema including the deprecation
	// sweep, wrapped in a backup transaction.
	ModeUpgrade
	// ModeReset removes this tool's contributions from the project.
	ModeReset
	// ModeCheck plans and reports without applying anything.
	ModeCheck
)

func (m Mode) String() string {
	switch m {
	case ModeSetup:
		return "setup"
	case ModeUpgrade:
		return "upgrade"
	case ModeReset:
		return "reset"
	case ModeCheck:
		return "check"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ErrVerificationMismatch is returned when a re-read after Applying
// does not match what the plan intended to write.
var ErrVerificationMismatch = errors.New("verification mismatch after apply")

// ContentSource resolves a template id to the final bytes an owned file
// should contain.
type ContentSource interface {
	Rendered(templateID string) ([]byte, error)
}

// fileWriter is the orchestrator's write surface. Tests substitute a
// failing implementation to exercise rollback.
type fileWriter interface {
	WriteAtomic(relPath string, content []byte, executable bool) error
	Remove(relPath string) error
	RemoveAll(relPath string) error
}

// Orchestrator runs reconciliations against one project root.
type Orchestrator struct {
	root        string
	reg         *schema.Registry
	man         manifest.Manager
	source      ContentSource
	logger      *slog.Logger
	writer      fileWriter
	toolVersion string
	observer    func(done, total int, a Action)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithToolVersion records the tool version in backup metadata.
func WithToolVersion(v string) Option {
	return func(o *Orchestrator) { o.toolVersion = v }
}

// WithObserver registers a callback invoked after each applied action.
// Used to drive progress display.
func WithObserver(fn func(done, total int, a Action)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

func withWriter(w fileWriter) Option {
	return func(o *Orchestrator) { o.writer = w }
}

// New creates an Orchestrator. The manifest must already be loaded.
func New(root string, reg *schema.Registry, man manifest.Manager, source ContentSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		root:   root,
		reg:    reg,
		man:    man,
		source: source,
		logger: slog.New(slog.DiscardHandler),
		writer: materialize.NewWriter(root),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Plan builds the ordered plan for a mode without touching the tree.
// Owned files come first, then managed files, then deprecated paths.
func (o *Orchestrator) Plan(ctx context.Context, mode Mode) (*Plan, error) {
	plan := &Plan{Mode: mode, SchemaVersion: o.reg.Version()}

	if mode == ModeReset {
		return o.planReset(ctx, plan)
	}

	for _, def := range o.reg.OwnedFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := o.planOwned(def)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, a)
	}

	for _, def := range o.reg.ManagedFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := o.planManaged(def)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, a)
	}

	if mode == ModeUpgrade || mode == ModeCheck {
		for _, entry := range o.reg.DeprecatedEntries() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, include, err := o.planDeprecated(entry)
			if err != nil {
				return nil, err
			}
			if include {
				plan.Actions = append(plan.Actions, a)
			}
		}
	}

	return plan, nil
}

func (o *Orchestrator) planOwned(def schema.FileDefinition) (Action, error) {
	rendered, err := o.source.Rendered(def.TemplateID)
	if err != nil {
		return Action{}, fmt.Errorf("render %q: %w", def.Path, err)
	}
	templateHash := manifest.HashBytes(rendered)

	current, exists, err := o.readFile(def.Path)
	if err != nil {
		return Action{}, err
	}
	rec, hasRecord := o.man.Get(def.Path)

	in := drift.Input{
		Exists:       exists,
		HasRecord:    hasRecord,
		TemplateHash: templateHash,
		CreateOnce:   def.Ownership == schema.CreateOnce,
	}
	if exists {
		in.CurrentHash = manifest.HashBytes(current)
	}
	if hasRecord {
		in.LastAppliedHash = rec.LastAppliedHash
	}

	a := Action{Path: def.Path, content: rendered, executable: def.Executable, newHash: templateHash}

	switch c := drift.Classify(in); c {
	case drift.FirstApply:
		a.Kind = ActionCreate
	case drift.Missing:
		a.Kind = ActionCreate
		a.Detail = "restoring missing file"
	case drift.TemplateOnlyChanged:
		a.Kind = ActionUpdate
	case drift.UserModified:
		a.Kind = ActionSkipDrifted
		if def.Ownership == schema.CreateOnce {
			// Not an error: an existing create-once file is user
			// territory regardless of its hash.
			a.Detail = "created once, not regenerated"
			a.content = nil
			a.newHash = ""
		} else {
			a.Detail = "user modifications detected"
			a.diff = merge.UnifiedDiff(def.Path, rendered, current)
		}
	case drift.Unchanged:
		a.Kind = ActionUnchanged
		a.content = nil
		a.newHash = ""
	default:
		return Action{}, fmt.Errorf("unhandled classification %v for %q", c, def.Path)
	}

	if def.Ownership == schema.CreateOnce && a.Kind == ActionCreate && hasRecord {
		// Applied once in the past and deleted since. That deletion is
		// the user's, so it stays.
		a = Action{Kind: ActionUnchanged, Path: def.Path, Detail: "created once, removed by user"}
	}

	return a, nil
}

func (o *Orchestrator) planManaged(def schema.ManagedFileDefinition) (Action, error) {
	current, exists, err := o.readFile(def.Path)
	if err != nil {
		return Action{}, err
	}

	doc, err := merge.ParseDocument(def.Format, current)
	if err != nil {
		return Action{Kind: ActionSkipBlocked, Path: def.Path, Detail: fmt.Sprintf("cannot parse: %v", err)}, nil
	}

	var added []string
	for _, frag := range def.Fragments {
		next, paths, err := merge.Apply(doc, frag)
		if err != nil {
			var conflict *merge.ConflictError
			if errors.As(err, &conflict) {
				return Action{Kind: ActionSkipBlocked, Path: def.Path, Detail: conflict.Error()}, nil
			}
			return Action{}, fmt.Errorf("merge %q: %w", def.Path, err)
		}
		doc = next
		added = append(added, paths...)
	}

	if len(added) == 0 {
		return Action{Kind: ActionUnchanged, Path: def.Path}, nil
	}

	encoded, err := merge.EncodeDocument(def.Format, doc)
	if err != nil {
		return Action{}, fmt.Errorf("encode %q: %w", def.Path, err)
	}

	detail := fmt.Sprintf("added %d entries", len(added))
	if !exists {
		detail = "created with managed fragments"
	}
	return Action{
		Kind:    ActionMerge,
		Path:    def.Path,
		Detail:  detail,
		content: encoded,
		newHash: manifest.HashBytes(encoded),
	}, nil
}

func (o *Orchestrator) planDeprecated(entry schema.DeprecatedEntry) (Action, bool, error) {
	d, err := sweep.Evaluate(o.root, entry, o.reg.Version())
	if err != nil {
		return Action{}, false, err
	}
	switch d.Verdict {
	case sweep.VerdictDelete:
		return Action{
			Kind:      ActionDelete,
			Path:      entry.Path,
			Detail:    "deprecated, content matches a known fingerprint",
			deleteDir: entry.Kind == schema.KindDirectory,
			untrack:   true,
		}, true, nil
	case sweep.VerdictBlocked:
		return Action{Kind: ActionSkipBlocked, Path: entry.Path, Detail: d.Reason}, true, nil
	default:
		return Action{}, false, nil
	}
}

// planReset builds the inverse plan: delete owned files this tool wrote
// and retract managed fragments, leaving user content intact.
func (o *Orchestrator) planReset(ctx context.Context, plan *Plan) (*Plan, error) {
	for _, def := range o.reg.OwnedFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, exists, err := o.readFile(def.Path)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		rec, hasRecord := o.man.Get(def.Path)
		if !hasRecord {
			plan.Actions = append(plan.Actions, Action{
				Kind: ActionSkipDrifted, Path: def.Path,
				Detail: "not tracked, left in place",
			})
			continue
		}
		if manifest.HashBytes(current) != rec.LastAppliedHash {
			plan.Actions = append(plan.Actions, Action{
				Kind: ActionSkipDrifted, Path: def.Path,
				Detail: "user modifications detected, left in place",
			})
			continue
		}
		plan.Actions = append(plan.Actions, Action{
			Kind: ActionDelete, Path: def.Path, untrack: true,
		})
	}

	for _, def := range o.reg.ManagedFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := o.planManagedRetract(def)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, a)
	}

	return plan, nil
}

func (o *Orchestrator) planManagedRetract(def schema.ManagedFileDefinition) (Action, error) {
	current, exists, err := o.readFile(def.Path)
	if err != nil {
		return Action{}, err
	}
	if !exists {
		return Action{Kind: ActionUnchanged, Path: def.Path}, nil
	}

	doc, err := merge.ParseDocument(def.Format, current)
	if err != nil {
		return Action{Kind: ActionSkipBlocked, Path: def.Path, Detail: fmt.Sprintf("cannot parse: %v", err)}, nil
	}

	var removed []string
	for i := len(def.Fragments) - 1; i >= 0; i-- {
		next, paths, err := merge.Retract(doc, def.Fragments[i])
		if err != nil {
			var conflict *merge.ConflictError
			if errors.As(err, &conflict) {
				return Action{Kind: ActionSkipBlocked, Path: def.Path, Detail: conflict.Error()}, nil
			}
			return Action{}, fmt.Errorf("retract %q: %w", def.Path, err)
		}
		doc = next
		removed = append(removed, paths...)
	}

	if len(removed) == 0 {
		return Action{Kind: ActionUnchanged, Path: def.Path}, nil
	}

	if m, ok := doc.(map[string]any); ok && len(m) == 0 {
		return Action{
			Kind: ActionDelete, Path: def.Path,
			Detail:  "only managed content remained",
			untrack: true,
		}, nil
	}

	encoded, err := merge.EncodeDocument(def.Format, doc)
	if err != nil {
		return Action{}, fmt.Errorf("encode %q: %w", def.Path, err)
	}
	return Action{
		Kind:    ActionMerge,
		Path:    def.Path,
		Detail:  fmt.Sprintf("removed %d entries", len(removed)),
		content: encoded,
		newHash: manifest.HashBytes(encoded),
		untrack: true,
	}, nil
}

// Run executes a full reconciliation in the given mode and returns the
// report. Check mode stops after Planning.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*Report, error) {
	o.logger.Info("planning", "mode", mode.String(), "schema_version", o.reg.Version())

	plan, err := o.Plan(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	report := newReport(mode, o.reg.Version())
	for _, a := range plan.Actions {
		report.record(a)
	}

	if mode == ModeCheck {
		return report, nil
	}

	var tx *backup.Transaction
	if mode == ModeUpgrade && plan.HasWork() {
		o.logger.Info("backing up", "paths", len(plan.MutatedPaths()))
		tx, err = backup.Begin(o.root, plan.MutatedPaths(), o.toolVersion, o.reg.Version())
		if err != nil {
			report.Failure = err.Error()
			return report, fmt.Errorf("backup failed: %w", err)
		}
	}

	fail := func(cause error) (*Report, error) {
		report.Failure = cause.Error()
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				o.logger.Error("rollback failed", "error", rbErr)
				return report, fmt.Errorf("%w (rollback also failed: %v)", cause, rbErr)
			}
			report.RolledBack = true
			o.logger.Warn("rolled back", "cause", cause)
		}
		return report, cause
	}

	o.logger.Info("applying", "actions", len(plan.Actions))
	if err := o.apply(ctx, plan); err != nil {
		return fail(err)
	}

	o.logger.Info("verifying")
	if err := o.verify(plan); err != nil {
		return fail(err)
	}

	if err := o.commit(plan); err != nil {
		return fail(err)
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			o.logger.Warn("backup cleanup failed", "error", err)
		}
	}

	o.logger.Info("committed",
		"created", report.Created, "updated", report.Updated,
		"merged", report.Merged, "deleted", report.Deleted,
		"drifted", report.Drifted, "blocked", report.Blocked)
	return report, nil
}

func (o *Orchestrator) apply(ctx context.Context, plan *Plan) error {
	total := len(plan.Actions)
	for i, a := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch a.Kind {
		case ActionCreate, ActionUpdate, ActionMerge:
			if err := o.writer.WriteAtomic(a.Path, a.content, a.executable); err != nil {
				return err
			}
		case ActionDelete:
			if a.deleteDir {
				if err := o.writer.RemoveAll(a.Path); err != nil {
					return err
				}
			} else if err := o.writer.Remove(a.Path); err != nil {
				return err
			}
		}
		if o.observer != nil {
			o.observer(i+1, total, a)
		}
	}
	return nil
}

// verify re-reads every mutated path and compares against the plan.
func (o *Orchestrator) verify(plan *Plan) error {
	for _, a := range plan.Actions {
		switch a.Kind {
		case ActionCreate, ActionUpdate, ActionMerge:
			hash, ok, err := manifest.HashFile(o.abs(a.Path))
			if err != nil {
				return err
			}
			if !ok || hash != a.newHash {
				return fmt.Errorf("%w: %s", ErrVerificationMismatch, a.Path)
			}
		case ActionDelete:
			if _, err := os.Stat(o.abs(a.Path)); err == nil {
				return fmt.Errorf("%w: %s still exists", ErrVerificationMismatch, a.Path)
			} else if !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

// commit persists the manifest to match what was applied.
func (o *Orchestrator) commit(plan *Plan) error {
	for _, a := range plan.Actions {
		switch a.Kind {
		case ActionCreate, ActionUpdate:
			o.man.Track(a.Path, a.newHash, o.reg.Version())
		case ActionMerge:
			if a.untrack {
				o.man.Remove(a.Path)
			} else {
				o.man.Track(a.Path, a.newHash, o.reg.Version())
			}
		case ActionDelete:
			o.man.Remove(a.Path)
		}
	}

	if plan.Mode == ModeUpgrade {
		o.pruneOrphans()
	}

	if plan.Mode == ModeReset && len(o.man.Paths()) == 0 {
		path := filepath.Join(o.root, defs.StencilDir, defs.ManifestJSON)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove manifest: %w", err)
		}
		return nil
	}

	if err := o.man.Save(o.root); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// pruneOrphans drops manifest entries for paths no schema category
// claims anymore, and for deprecated paths already gone from disk.
// Runs as part of the upgrade sweep.
func (o *Orchestrator) pruneOrphans() {
	for _, p := range o.man.Paths() {
		switch o.reg.Resolve(p).Kind {
		case schema.ResolvedNotFound:
			o.logger.Debug("pruning orphan manifest entry", "path", p)
			o.man.Remove(p)
		case schema.ResolvedDeprecated:
			if _, err := os.Stat(o.abs(p)); os.IsNotExist(err) {
				o.logger.Debug("pruning deprecated manifest entry", "path", p)
				o.man.Remove(p)
			}
		}
	}
}

func (o *Orchestrator) readFile(rel string) ([]byte, bool, error) {
	data, err := os.ReadFile(o.abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %q: %w", rel, err)
	}
	return data, true, nil
}

func (o *Orchestrator) abs(rel string) string {
	return filepath.Join(o.root, filepath.FromSlash(rel))
}
