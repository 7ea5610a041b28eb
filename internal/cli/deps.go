// Package cli provides the Cobra command tree and dependency injection
// wiring for the stencil CLI. This file defines the Dependencies struct
// that wires the shared services commands rely on.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/stencilhq/stencil/internal/ui"
)

// Dependencies holds the services shared by CLI commands.
type Dependencies struct {
	Logger   *slog.Logger
	Headless *ui.HeadlessManager
	Progress *ui.Progress
}

// deps is the global dependencies instance, initialized by
// InitDependencies.
var deps *Dependencies

// InitDependencies creates and wires the shared dependencies. It should
// be called once during application startup.
func InitDependencies() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("STENCIL_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	hm := ui.NewHeadlessManager()
	deps = &Dependencies{
		Logger:   logger,
		Headless: hm,
		Progress: ui.NewProgress(hm),
	}
}

// GetDeps returns the current Dependencies instance, or nil if
// InitDependencies has not been called.
func GetDeps() *Dependencies {
	return deps
}

// SetDeps replaces the global dependencies (used for testing).
func SetDeps(d *Dependencies) {
	deps = d
}
