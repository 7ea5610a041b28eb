package defs

import "io/fs"

// Common file and directory names used across the project.
const (
	// StencilDir is the per-project state directory.
	StencilDir = ".stencil"

	// ManifestJSON is the fingerprint manifest that records the hash of
	// every file the last successful reconciliation applied.
	ManifestJSON = "manifest.json"

	// ConfigYAML is the user-editable project configuration file.
	ConfigYAML = "config.yaml"

	// BackupsDir holds timestamped pre-upgrade snapshots.
	BackupsDir = ".stencil-backups"

	// BackupMetadataJSON describes one snapshot under BackupsDir.
	BackupMetadataJSON = "backup_metadata.json"
)

// BackupTimestampFormat names backup directories as YYYYMMDD_HHMMSS.
const BackupTimestampFormat = "20060102_150405"

// File permissions for materialized content.
const (
	// DirPerm is the mode for created directories.
	DirPerm fs.FileMode = 0o755

	// FilePerm is the default mode for written files.
	FilePerm fs.FileMode = 0o644

	// ExecPerm is the mode for files declared executable by the schema.
	ExecPerm fs.FileMode = 0o755
)

// TempFilePattern is the os.CreateTemp pattern for atomic writes. Temp
// files live in the destination directory so the final rename never
// crosses a filesystem boundary.
const TempFilePattern = ".stencil-tmp-*"
