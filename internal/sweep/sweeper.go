// Package sweep decides whether deprecated paths can be deleted safely.
// The rule is conservative: content is removed only when it provably
// matches what a past schema shipped. Anything unrecognized is reported
// and left alone.
package sweep

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/stencilhq/stencil/internal/manifest"
	"github.com/stencilhq/stencil/internal/schema"
	"github.com/stencilhq/stencil/pkg/version"
)

// Verdict is the outcome of evaluating one deprecated entry.
type Verdict int

const (
	// VerdictSkip means the entry does not apply yet or the target is
	// already gone. Nothing to do.
	VerdictSkip Verdict = iota
	// VerdictDelete means the target matches a historical fingerprint
	// and can be removed.
	VerdictDelete
	// VerdictBlocked means the target exists but its content is not
	// recognized. It must be left in place and reported.
	VerdictBlocked
)

func (v Verdict) String() string {
	switch v {
	case VerdictSkip:
		return "skip"
	case VerdictDelete:
		return "delete"
	case VerdictBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Decision carries the verdict for a deprecated entry plus the reason
// when deletion is blocked.
type Decision struct {
	Path    string
	Kind    schema.PathKind
	Verdict Verdict
	Reason  string
}

// Evaluate inspects one deprecated entry against the filesystem and
// returns the deletion decision. It never mutates anything.
func Evaluate(root string, entry schema.DeprecatedEntry, currentVersion string) (Decision, error) {
	d := Decision{Path: entry.Path, Kind: entry.Kind}

	if entry.Since != "" && version.Compare(entry.Since, currentVersion) > 0 {
		d.Verdict = VerdictSkip
		d.Reason = fmt.Sprintf("deprecated since %s, not yet in effect", entry.Since)
		return d, nil
	}

	target := filepath.Join(root, filepath.FromSlash(entry.Path))
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			d.Verdict = VerdictSkip
			return d, nil
		}
		return d, fmt.Errorf("stat %q: %w", entry.Path, err)
	}

	switch entry.Kind {
	case schema.KindFile:
		if info.IsDir() {
			d.Verdict = VerdictBlocked
			d.Reason = "expected a file, found a directory"
			return d, nil
		}
		return evaluateFile(target, entry, d)
	case schema.KindDirectory:
		if !info.IsDir() {
			d.Verdict = VerdictBlocked
			d.Reason = "expected a directory, found a file"
			return d, nil
		}
		return evaluateDirectory(target, entry, d)
	default:
		return d, fmt.Errorf("unknown path kind for %q", entry.Path)
	}
}

func evaluateFile(target string, entry schema.DeprecatedEntry, d Decision) (Decision, error) {
	hash, ok, err := manifest.HashFile(target)
	if err != nil {
		return d, err
	}
	if !ok {
		d.Verdict = VerdictSkip
		return d, nil
	}
	if hashListed(hash, entry.Fingerprints) {
		d.Verdict = VerdictDelete
		return d, nil
	}
	d.Verdict = VerdictBlocked
	d.Reason = "content does not match any known fingerprint"
	return d, nil
}

// evaluateDirectory allows deletion only when every file inside matches
// a child pattern and, when fingerprints are declared, every file's hash
// is listed. One stranger blocks the whole directory.
func evaluateDirectory(target string, entry schema.DeprecatedEntry, d Decision) (Decision, error) {
	var blocked string
	err := filepath.WalkDir(target, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(target, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !matchesChild(rel, entry.Children) {
			blocked = fmt.Sprintf("unrecognized file %q", rel)
			return fs.SkipAll
		}
		if len(entry.Fingerprints) > 0 {
			hash, ok, err := manifest.HashFile(path)
			if err != nil {
				return err
			}
			if !ok || !hashListed(hash, entry.Fingerprints) {
				blocked = fmt.Sprintf("file %q does not match any known fingerprint", rel)
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return d, fmt.Errorf("scan %q: %w", entry.Path, err)
	}

	if blocked != "" {
		d.Verdict = VerdictBlocked
		d.Reason = blocked
		return d, nil
	}
	d.Verdict = VerdictDelete
	return d, nil
}

func matchesChild(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func hashListed(hash string, fingerprints []string) bool {
	for _, fp := range fingerprints {
		if hash == fp {
			return true
		}
	}
	return false
}
