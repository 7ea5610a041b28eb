package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file is not an error", func(t *testing.T) {
		t.Parallel()
		cfg, found, err := Load(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Error("found = true for empty project")
		}
		if cfg.Project.Name != "" {
			t.Errorf("zero config has name %q", cfg.Project.Name)
		}
	})

	t.Run("reads project and version sections", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeConfig(t, root, `
project:
  name: my-service
  initialized_at: "2026-08-30T10:00:00Z"
stencil:
  tool_version: "v2.1.0"
  schema_version: "2.1.0"
`)

		cfg, found, err := Load(root)
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("found = false")
		}
		if cfg.Project.Name != "my-service" {
			t.Errorf("name = %q", cfg.Project.Name)
		}
		if cfg.Stencil.SchemaVersion != "2.1.0" {
			t.Errorf("schema version = %q", cfg.Stencil.SchemaVersion)
		}
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeConfig(t, root, "project: [unclosed")

		if _, _, err := Load(root); err == nil {
			t.Error("malformed config accepted")
		}
	})

	t.Run("ignores unknown keys", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeConfig(t, root, `
project:
  name: svc
custom_section:
  anything: goes
`)

		cfg, _, err := Load(root)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Project.Name != "svc" {
			t.Errorf("name = %q", cfg.Project.Name)
		}
	})
}

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, ".stencil")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
