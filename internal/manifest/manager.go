// Package manifest persists the fingerprint manifest: one content hash per
// reconciled path, recorded at the last successful apply. It is the
// engine's only durable state and is owned exclusively by the
// orchestrator for the duration of one invocation.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/stencilhq/stencil/internal/defs"
)

// manifestFormatVersion guards the on-disk JSON layout.
const manifestFormatVersion = 1

// Entry records the outcome of the last successful apply for one path.
type Entry struct {
	// Path is project-relative, forward-slashed.
	Path string `json:"path"`

	// LastAppliedHash is the content hash the engine last wrote (or, for
	// merged files, the hash of the merged result).
	LastAppliedHash string `json:"last_applied_hash"`

	// SchemaVersion is the schema version in effect at apply time.
	SchemaVersion string `json:"schema_version"`

	// AppliedAt is when the entry was last updated.
	AppliedAt time.Time `json:"applied_at"`
}

// fileDoc is the on-disk JSON envelope.
type fileDoc struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Manager loads, mutates, and persists the fingerprint manifest.
type Manager interface {
	// Load reads the manifest from projectRoot. A missing file is not an
	// error; it yields an empty manifest and found=false (first run).
	Load(projectRoot string) (found bool, err error)

	// Get returns the entry for a path.
	Get(path string) (Entry, bool)

	// Track records a fresh apply for a path.
	Track(path, hash, schemaVersion string)

	// Remove drops a path's entry, if present.
	Remove(path string)

	// Paths returns all tracked paths in sorted order.
	Paths() []string

	// Save writes the manifest back under projectRoot atomically.
	Save(projectRoot string) error
}

// manager is the concrete Manager.
type manager struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewManager creates an empty Manager.
func NewManager() Manager {
	return &manager{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Load implements Manager.
func (m *manager) Load(projectRoot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]Entry)

	path := manifestPath(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read manifest: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	if doc.Version != manifestFormatVersion {
		return false, fmt.Errorf("manifest %q has unsupported format version %d", path, doc.Version)
	}

	for _, e := range doc.Entries {
		m.entries[e.Path] = e
	}
	return true, nil
}

// Get implements Manager.
func (m *manager) Get(path string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path]
	return e, ok
}

// Track implements Manager.
func (m *manager) Track(path, hash, schemaVersion string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[path] = Entry{
		Path:            path,
		LastAppliedHash: hash,
		SchemaVersion:   schemaVersion,
		AppliedAt:       m.now().UTC(),
	}
}

// Remove implements Manager.
func (m *manager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, path)
}

// Paths implements Manager.
func (m *manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Save implements Manager. The write is temp-then-rename so an
// interrupted save never corrupts the previous manifest.
func (m *manager) Save(projectRoot string) error {
	m.mu.RLock()
	doc := fileDoc{Version: manifestFormatVersion}
	for _, p := range m.sortedPathsLocked() {
		doc.Entries = append(doc.Entries, m.entries[p])
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	path := manifestPath(projectRoot)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defs.DirPerm); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, defs.TempFilePattern)
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Chmod(defs.FilePerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close manifest temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename manifest into place: %w", err)
	}
	return nil
}

// sortedPathsLocked assumes the caller holds at least a read lock.
func (m *manager) sortedPathsLocked() []string {
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// manifestPath returns the on-disk manifest location for a project root.
func manifestPath(projectRoot string) string {
	return filepath.Join(projectRoot, defs.StencilDir, defs.ManifestJSON)
}

// HashBytes returns the hex SHA-256 digest of content.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 digest of a file's content.
// The second return value is false when the file does not exist.
func HashFile(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("hash %q: %w", path, err)
	}
	return HashBytes(data), true, nil
}
