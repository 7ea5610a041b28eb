// Package materialize performs the low-level filesystem mutations of a
// reconciliation plan. Every write is atomic: content lands in a temp
// file beside the destination and is renamed into place, so a process
// kill mid-write can never leave a half-written owned file.
package materialize

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stencilhq/stencil/internal/defs"
)

// Writer mutates files under a single project root. Relative paths are
// validated against the root so a malformed schema cannot escape it.
type Writer struct {
	root string
}

// NewWriter creates a Writer rooted at projectRoot.
func NewWriter(projectRoot string) *Writer {
	return &Writer{root: filepath.Clean(projectRoot)}
}

// WriteAtomic writes content to a project-relative path via
// temp-file-then-rename, creating parent directories as needed.
// Executable selects the permission mode declared by the schema.
func (w *Writer) WriteAtomic(relPath string, content []byte, executable bool) error {
	dest, err := w.resolve(relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, defs.DirPerm); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	perm := defs.FilePerm
	if executable {
		perm = defs.ExecPerm
	}

	tmp, err := os.CreateTemp(dir, defs.TempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %q: %w", relPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %q: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file for %q: %w", relPath, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %q into place: %w", relPath, err)
	}

	return nil
}

// Remove deletes a project-relative file. Removing a missing file is not
// an error.
func (w *Writer) Remove(relPath string) error {
	dest, err := w.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", relPath, err)
	}
	return nil
}

// RemoveAll deletes a project-relative directory tree.
func (w *Writer) RemoveAll(relPath string) error {
	dest, err := w.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("remove %q: %w", relPath, err)
	}
	return nil
}

// Read returns the current content of a project-relative file.
// The boolean reports existence.
func (w *Writer) Read(relPath string) ([]byte, bool, error) {
	dest, err := w.resolve(relPath)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %q: %w", relPath, err)
	}
	return data, true, nil
}

// Abs returns the absolute path of a project-relative path after
// containment validation.
func (w *Writer) Abs(relPath string) (string, error) {
	return w.resolve(relPath)
}

// resolve joins relPath onto the root and rejects traversal out of it.
func (w *Writer) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))

	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute path %q not allowed", relPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root", relPath)
	}

	return filepath.Join(w.root, cleaned), nil
}

// Mode returns the permission bits of a project-relative file, or the
// default file mode when it does not exist.
func (w *Writer) Mode(relPath string) (fs.FileMode, error) {
	dest, err := w.resolve(relPath)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return defs.FilePerm, nil
		}
		return 0, fmt.Errorf("stat %q: %w", relPath, err)
	}
	return info.Mode() & 0o777, nil
}
