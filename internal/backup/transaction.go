// Package backup implements the pre-upgrade snapshot transaction.
// A transaction snapshots every path the plan may mutate, then either
// commits (snapshot discarded) or rolls back (bytes restored verbatim,
// files created during the run deleted). A pending snapshot left behind
// by a crash is detected on the next run.
package backup

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stencilhq/stencil/internal/defs"
)

// Metadata describes one backup snapshot on disk. It is written before
// any project file is touched so recovery is always possible.
type Metadata struct {
	Timestamp     string   `json:"timestamp"`
	ToolVersion   string   `json:"tool_version"`
	SchemaVersion string   `json:"schema_version"`
	ProjectRoot   string   `json:"project_root"`
	State         string   `json:"state"`
	Snapshotted   []string `json:"snapshotted"`
	Absent        []string `json:"absent"`
}

const (
	// StatePending marks a snapshot whose run has not finished.
	StatePending = "pending"
)

// Transaction is an open backup covering one reconciliation run.
type Transaction struct {
	root string
	dir  string
	meta Metadata
}

// Begin snapshots the given project-relative paths into a timestamped
// directory under the backups dir. Paths that do not exist are recorded
// as absent so rollback can delete anything created in their place.
func Begin(root string, paths []string, toolVersion, schemaVersion string) (*Transaction, error) {
	ts := time.Now().Format(defs.BackupTimestampFormat)
	dir := filepath.Join(root, defs.BackupsDir, ts)
	if err := os.MkdirAll(dir, defs.DirPerm); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	tx := &Transaction{
		root: root,
		dir:  dir,
		meta: Metadata{
			Timestamp:     ts,
			ToolVersion:   toolVersion,
			SchemaVersion: schemaVersion,
			ProjectRoot:   root,
			State:         StatePending,
		},
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, rel := range sorted {
		src := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				tx.meta.Absent = append(tx.meta.Absent, rel)
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", rel, err)
		}
		if info.IsDir() {
			if err := tx.snapshotDir(rel, src); err != nil {
				return nil, err
			}
		} else if err := tx.snapshotFile(rel, src, info.Mode()); err != nil {
			return nil, err
		}
	}

	if err := tx.writeMetadata(); err != nil {
		return nil, err
	}
	return tx, nil
}

func (tx *Transaction) snapshotFile(rel, src string, mode fs.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %q for backup: %w", rel, err)
	}
	dst := filepath.Join(tx.dir, "files", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), defs.DirPerm); err != nil {
		return fmt.Errorf("create backup subdirectory: %w", err)
	}
	if err := os.WriteFile(dst, data, mode&0o777); err != nil {
		return fmt.Errorf("snapshot %q: %w", rel, err)
	}
	tx.meta.Snapshotted = append(tx.meta.Snapshotted, rel)
	return nil
}

func (tx *Transaction) snapshotDir(rel, src string) error {
	return filepath.WalkDir(src, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		sub, err := filepath.Rel(filepath.Join(tx.root), path)
		if err != nil {
			return err
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		return tx.snapshotFile(filepath.ToSlash(sub), path, info.Mode())
	})
}

func (tx *Transaction) writeMetadata() error {
	data, err := json.MarshalIndent(tx.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup metadata: %w", err)
	}
	path := filepath.Join(tx.dir, defs.BackupMetadataJSON)
	if err := os.WriteFile(path, append(data, '\n'), defs.FilePerm); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	return nil
}

// Dir returns the snapshot directory of this transaction.
func (tx *Transaction) Dir() string {
	return tx.dir
}

// Commit discards the snapshot. Called only after the manifest has been
// persisted successfully.
func (tx *Transaction) Commit() error {
	if err := os.RemoveAll(tx.dir); err != nil {
		return fmt.Errorf("discard backup: %w", err)
	}
	return nil
}

// Rollback restores every snapshotted file byte for byte, deletes files
// that were absent before the run, and then discards the snapshot.
func (tx *Transaction) Rollback() error {
	if err := restore(tx.root, tx.dir, tx.meta); err != nil {
		return err
	}
	return tx.Commit()
}

func restore(root, dir string, meta Metadata) error {
	for _, rel := range meta.Snapshotted {
		src := filepath.Join(dir, "files", filepath.FromSlash(rel))
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read snapshot of %q: %w", rel, err)
		}
		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("stat snapshot of %q: %w", rel, err)
		}
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), defs.DirPerm); err != nil {
			return fmt.Errorf("restore %q: %w", rel, err)
		}
		if err := os.WriteFile(dst, data, info.Mode()&0o777); err != nil {
			return fmt.Errorf("restore %q: %w", rel, err)
		}
	}
	for _, rel := range meta.Absent {
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove %q during rollback: %w", rel, err)
		}
	}
	return nil
}

// Stale points at a pending snapshot left behind by an interrupted run.
type Stale struct {
	Dir  string
	Meta Metadata
}

// FindStale returns the newest pending snapshot under the backups dir,
// or nil when none exists.
func FindStale(root string) (*Stale, error) {
	base := filepath.Join(root, defs.BackupsDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups directory: %w", err)
	}

	var newest *Stale
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(base, e.Name())
		meta, err := readMetadata(dir)
		if err != nil {
			continue
		}
		if meta.State != StatePending {
			continue
		}
		if newest == nil || meta.Timestamp > newest.Meta.Timestamp {
			newest = &Stale{Dir: dir, Meta: meta}
		}
	}
	return newest, nil
}

func readMetadata(dir string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(filepath.Join(dir, defs.BackupMetadataJSON))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode backup metadata: %w", err)
	}
	return meta, nil
}

// Restore applies a stale snapshot back onto the project and discards it.
func (s *Stale) Restore(root string) error {
	if err := restore(root, s.Dir, s.Meta); err != nil {
		return err
	}
	return s.Discard()
}

// Discard deletes a stale snapshot without touching the project.
func (s *Stale) Discard() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("discard backup: %w", err)
	}
	return nil
}
