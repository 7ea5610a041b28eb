// Package drift classifies a tracked path by comparing three content
// hashes: what is on disk now, what the engine last applied, and what the
// current schema would produce.
package drift

// Classification is the exhaustive drift state of one tracked path.
type Classification int

const (
	// Unchanged: disk matches the last apply and the template has not
	// moved. Safe no-op.
	Unchanged Classification = iota

	// TemplateOnlyChanged: disk matches the last apply but the template
	// has new content. Safe to update.
	TemplateOnlyChanged

	// UserModified: the file diverged from what the engine last wrote.
	// Never silently overwritten.
	UserModified

	// Missing: the file was applied before but no longer exists.
	Missing

	// FirstApply: no fingerprint record exists for this path.
	FirstApply
)

// String returns a report-friendly name.
func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case TemplateOnlyChanged:
		return "template-only-changed"
	case UserModified:
		return "user-modified"
	case Missing:
		return "missing"
	case FirstApply:
		return "first-apply"
	default:
		return "unknown"
	}
}

// NeedsWrite reports whether the classification calls for materializing
// content.
func (c Classification) NeedsWrite() bool {
	return c == TemplateOnlyChanged || c == Missing || c == FirstApply
}

// Input carries the observations Classify needs. Hashes are hex digests;
// empty strings are only meaningful together with the presence flags.
type Input struct {
	// Exists is whether the file is currently on disk.
	Exists bool

	// CurrentHash is the hash of the on-disk content (when Exists).
	CurrentHash string

	// HasRecord is whether the fingerprint manifest knows this path.
	HasRecord bool

	// LastAppliedHash is the recorded hash (when HasRecord).
	LastAppliedHash string

	// TemplateHash is the hash of what the current schema would produce.
	TemplateHash string

	// CreateOnce marks write-once ownership.
	CreateOnce bool
}

// Classify applies the classification table.
//
// CreateOnce files are never reclassified past FirstApply: any existing
// file is user territory by definition, no matter what its hash says.
func Classify(in Input) Classification {
	if in.CreateOnce && in.Exists {
		return UserModified
	}

	if !in.HasRecord {
		return FirstApply
	}

	if !in.Exists {
		return Missing
	}

	if in.CurrentHash != in.LastAppliedHash {
		return UserModified
	}

	if in.TemplateHash != in.LastAppliedHash {
		return TemplateOnlyChanged
	}

	return Unchanged
}
