// Package schema models the versioned file-ownership manifest that drives
// reconciliation: which paths the toolkit owns outright, which it manages
// fragments inside, and which it has deprecated.
package schema

// Ownership describes how completely the toolkit controls an owned file.
type Ownership int

const (
	// AlwaysRegenerate files are rewritten whenever the template changes,
	// unless the user has modified them since the last apply.
	AlwaysRegenerate Ownership = iota

	// CreateOnce files are written on first apply and never touched again.
	CreateOnce
)

// String returns the manifest spelling of the ownership kind.
func (o Ownership) String() string {
	switch o {
	case AlwaysRegenerate:
		return "always-regenerate"
	case CreateOnce:
		return "create-once"
	default:
		return "unknown"
	}
}

// FileDefinition declares a file the toolkit fully owns.
type FileDefinition struct {
	// Path is the project-relative destination, always forward-slashed.
	Path string

	// Ownership selects the regeneration policy.
	Ownership Ownership

	// TemplateID names the source template whose rendered output is the
	// desired content for this path.
	TemplateID string

	// Executable sets the executable permission bit on the written file.
	Executable bool
}

// Format identifies the structured encoding of a managed file.
type Format int

const (
	// FormatJSON parses and re-encodes the file as JSON.
	FormatJSON Format = iota

	// FormatYAML parses and re-encodes the file as YAML.
	FormatYAML
)

// String returns the manifest spelling of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// StrategyKind is the closed set of fragment merge strategies.
type StrategyKind int

const (
	// DeepMergeMissingKeys recursively adds payload keys absent from the
	// existing document; existing values always win, arrays are leaves.
	DeepMergeMissingKeys StrategyKind = iota

	// ArrayUnionByKey appends payload entries to a target array unless an
	// existing entry already carries an equivalent key.
	ArrayUnionByKey

	// ScriptAppend adds absent keys to a flat string-keyed map.
	ScriptAppend
)

// String returns the manifest spelling of the strategy.
func (k StrategyKind) String() string {
	switch k {
	case DeepMergeMissingKeys:
		return "deep-merge"
	case ArrayUnionByKey:
		return "array-union"
	case ScriptAppend:
		return "script-append"
	default:
		return "unknown"
	}
}

// MatchMode controls how ArrayUnionByKey compares extracted keys.
type MatchMode int

const (
	// MatchExact requires the extracted keys to be equal.
	MatchExact MatchMode = iota

	// MatchSubstring treats entries as equivalent when either extracted
	// key contains the other. Used for hook-registration arrays where a
	// command line may gain flags without becoming a new registration.
	MatchSubstring
)

// Fragment is one contribution a managed file must contain.
type Fragment struct {
	// Strategy selects the merge behavior for this fragment.
	Strategy StrategyKind

	// Target is a dotted path to the merge anchor inside the document
	// (for example "scripts" or "tasks"). Empty means the document root.
	Target string

	// MatchField names the entry field whose value identifies an array
	// entry for ArrayUnionByKey. Ignored by the other strategies.
	MatchField string

	// MatchMode selects exact or substring key comparison.
	MatchMode MatchMode

	// Payload is the decoded fragment content to ensure is present:
	// a map for DeepMergeMissingKeys and ScriptAppend, a list for
	// ArrayUnionByKey.
	Payload any
}

// ManagedFileDefinition declares a file the toolkit contributes fragments
// to without owning the rest of its content.
type ManagedFileDefinition struct {
	Path      string
	Format    Format
	Fragments []Fragment
}

// PathKind distinguishes deprecated files from deprecated directories.
type PathKind int

const (
	// KindFile marks a single deprecated file.
	KindFile PathKind = iota

	// KindDirectory marks a deprecated directory swept recursively.
	KindDirectory
)

// String returns the manifest spelling of the path kind.
func (k PathKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// DeprecatedEntry declares a path older schema versions owned that the
// current version wants removed.
type DeprecatedEntry struct {
	Path string
	Kind PathKind

	// Since is the schema version that introduced the deprecation.
	Since string

	// Fingerprints are content hashes of every framework-generated
	// revision of this path. A file is only deleted when its current
	// hash appears here.
	Fingerprints []string

	// Children are doublestar patterns matching framework-authored files
	// inside a deprecated directory. Files not matching any pattern
	// block the sweep.
	Children []string
}
