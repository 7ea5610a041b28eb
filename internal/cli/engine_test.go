package cli

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/stencilhq/stencil/internal/manifest"
)

func TestResolveRoot(t *testing.T) {
	t.Parallel()

	t.Run("flag value is made absolute", func(t *testing.T) {
		t.Parallel()
		got, err := resolveRoot("some/rel/path")
		if err != nil {
			t.Fatal(err)
		}
		if !filepath.IsAbs(got) {
			t.Errorf("root %q is not absolute", got)
		}
	})

	t.Run("empty flag falls back to cwd", func(t *testing.T) {
		t.Parallel()
		got, err := resolveRoot("")
		if err != nil {
			t.Fatal(err)
		}
		cwd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if got != cwd {
			t.Errorf("root = %q, want %q", got, cwd)
		}
	})
}

func TestAllAtVersion(t *testing.T) {
	t.Parallel()

	man := manifest.NewManager()
	eng := &engine{man: man}

	if eng.allAtVersion("2.1.0") {
		t.Error("empty manifest reported as up to date")
	}

	man.Track("a.txt", "hash-a", "2.1.0")
	man.Track("b.txt", "hash-b", "2.1.0")
	if !eng.allAtVersion("2.1.0") {
		t.Error("uniform manifest not recognized")
	}

	man.Track("c.txt", "hash-c", "2.0.0")
	if eng.allAtVersion("2.1.0") {
		t.Error("stale entry not detected")
	}
}

// runCommand executes the root command with args. Commands share package
// state, so callers must not run in parallel. Flag values are restored
// to their defaults afterwards; cobra keeps them set between runs.
func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	InitDependencies()
	deps.Headless.ForceHeadless(true)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		})
	}
	return err
}

func TestSetupThenCheck(t *testing.T) {
	root := t.TempDir()

	if err := runCommand(t, "setup", "--root", root); err != nil {
		t.Fatalf("setup: %v", err)
	}

	for _, rel := range []string{
		".stencil/manifest.json",
		".stencil/hooks/pre-commit.sh",
		".stencil/config.yaml",
	} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing %s after setup: %v", rel, err)
		}
	}

	if runtime.GOOS != "windows" {
		// Generated hooks carry the executable bit.
		info, err := os.Stat(filepath.Join(root, ".stencil", "hooks", "pre-commit.sh"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode()&0o100 == 0 {
			t.Error("pre-commit.sh is not executable")
		}
	}

	if err := runCommand(t, "check", "--quiet", "--root", root); err != nil {
		t.Errorf("check after setup: %v", err)
	}
}

// plantStaleBackup fakes the pending snapshot an interrupted upgrade
// leaves behind.
func plantStaleBackup(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, ".stencil-backups", "20260101_000000")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := `{"timestamp":"20260101_000000","state":"pending","snapshotted":[],"absent":[]}`
	if err := os.WriteFile(filepath.Join(dir, "backup_metadata.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestStaleBackupBlocksHeadlessRuns(t *testing.T) {
	for _, command := range []string{"setup", "reset", "upgrade"} {
		root := t.TempDir()
		plantStaleBackup(t, root)

		err := runCommand(t, command, "--root", root)
		if err == nil {
			t.Errorf("%s proceeded over a stale backup without a recovery flag", command)
			continue
		}
		if !strings.Contains(err.Error(), "backup") {
			t.Errorf("%s error = %v, want stale backup guidance", command, err)
		}
	}
}

func TestStaleBackupDiscardedWithFlag(t *testing.T) {
	root := t.TempDir()
	dir := plantStaleBackup(t, root)

	if err := runCommand(t, "setup", "--discard-backup", "--root", root); err != nil {
		t.Fatalf("setup with --discard-backup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("stale backup directory survived --discard-backup")
	}
	if _, err := os.Stat(filepath.Join(root, ".stencil", "manifest.json")); err != nil {
		t.Errorf("setup did not proceed after discarding: %v", err)
	}
}

func TestCheckFailsOnBlockedPath(t *testing.T) {
	root := t.TempDir()

	if err := runCommand(t, "setup", "--root", root); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// A deprecated path with unrecognized content blocks the sweep.
	legacy := filepath.Join(root, ".stencil", "hooks", "legacy-lint.sh")
	if err := os.WriteFile(legacy, []byte("#!/bin/sh\nmy own lint\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := runCommand(t, "check", "--quiet", "--root", root)
	if err == nil {
		t.Fatal("check succeeded despite a blocked deprecated path")
	}

	// The blocked file itself is never touched.
	if _, statErr := os.Stat(legacy); statErr != nil {
		t.Errorf("check removed the blocked file: %v", statErr)
	}
}
