package reconcile

import "fmt"

// ActionKind classifies one planned step of a reconciliation.
type ActionKind int

const (
	// ActionUnchanged records that a path already matches the schema.
	ActionUnchanged ActionKind = iota
	// ActionCreate writes a file that does not exist yet.
	ActionCreate
	// ActionUpdate rewrites an owned file whose template moved.
	ActionUpdate
	// ActionMerge rewrites a managed file with fragments folded in or
	// retracted.
	ActionMerge
	// ActionSkipDrifted leaves a user-modified owned file alone.
	ActionSkipDrifted
	// ActionSkipBlocked records a recoverable conflict that prevents
	// the step from being applied.
	ActionSkipBlocked
	// ActionDelete removes a deprecated path or, in reset mode, a file
	// this tool created.
	ActionDelete
)

func (k ActionKind) String() string {
	switch k {
	case ActionUnchanged:
		return "unchanged"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionMerge:
		return "merge"
	case ActionSkipDrifted:
		return "skip-drifted"
	case ActionSkipBlocked:
		return "skip-blocked"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is one immutable step of a plan. Write steps carry their final
// content so Applying never re-computes what Planning decided.
type Action struct {
	Kind   ActionKind
	Path   string
	Detail string

	content    []byte
	executable bool
	newHash    string
	deleteDir  bool
	untrack    bool
	diff       string
}

// Diff returns the unified diff attached to a drifted action, if any.
func (a Action) Diff() string {
	return a.diff
}

// mutates reports whether executing the action touches the filesystem.
func (a Action) mutates() bool {
	switch a.Kind {
	case ActionCreate, ActionUpdate, ActionMerge, ActionDelete:
		return true
	default:
		return false
	}
}

// Plan is the ordered, immutable output of the Planning state.
type Plan struct {
	Mode          Mode
	SchemaVersion string
	Actions       []Action
}

// MutatedPaths returns the paths the plan will write or delete, in plan
// order. These are the paths the backup transaction must cover.
func (p *Plan) MutatedPaths() []string {
	var paths []string
	for _, a := range p.Actions {
		if a.mutates() {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// HasWork reports whether any action mutates the filesystem.
func (p *Plan) HasWork() bool {
	return len(p.MutatedPaths()) > 0
}
