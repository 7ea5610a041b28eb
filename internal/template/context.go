package template

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// RenderContext carries the values templates can interpolate. Templates
// are rendered in strict mode, so every field referenced by a template
// must be populated here.
type RenderContext struct {
	ProjectName   string
	ProjectRoot   string
	ToolVersion   string
	SchemaVersion string
	Platform      string
	HomeDir       string
	InitializedAt string
}

// ContextOption mutates a RenderContext during construction.
type ContextOption func(*RenderContext)

// NewRenderContext builds a RenderContext for the given project root
// with platform defaults, then applies the options.
func NewRenderContext(projectRoot string, opts ...ContextOption) RenderContext {
	home, _ := os.UserHomeDir()
	ctx := RenderContext{
		ProjectName:   filepath.Base(filepath.Clean(projectRoot)),
		ProjectRoot:   projectRoot,
		Platform:      runtime.GOOS,
		HomeDir:       home,
		InitializedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, opt := range opts {
		opt(&ctx)
	}
	return ctx
}

// WithProjectName overrides the project name derived from the root.
func WithProjectName(name string) ContextOption {
	return func(c *RenderContext) { c.ProjectName = name }
}

// WithVersions sets the tool and schema versions.
func WithVersions(tool, schema string) ContextOption {
	return func(c *RenderContext) {
		c.ToolVersion = tool
		c.SchemaVersion = schema
	}
}

// WithPlatform overrides the detected platform. Used in tests.
func WithPlatform(platform string) ContextOption {
	return func(c *RenderContext) { c.Platform = platform }
}

// WithInitializedAt pins the initialization timestamp. Used in tests to
// make rendered output deterministic.
func WithInitializedAt(ts string) ContextOption {
	return func(c *RenderContext) { c.InitializedAt = ts }
}
