package assets_test

import (
	"io/fs"
	"testing"

	"github.com/stencilhq/stencil/internal/assets"
	"github.com/stencilhq/stencil/internal/schema"
)

// The embedded schema is what every default invocation runs against, so
// it must load, validate, and reference only templates that ship.
func TestEmbeddedSchemaLoads(t *testing.T) {
	t.Parallel()

	reg, err := schema.Load(assets.Schema(), assets.SchemaDefinition())
	if err != nil {
		t.Fatalf("embedded schema rejected: %v", err)
	}
	if reg.Version() == "" {
		t.Error("schema version is empty")
	}

	templates := assets.Templates()
	for _, def := range reg.OwnedFiles() {
		if def.TemplateID == "" {
			t.Errorf("%s has no template", def.Path)
			continue
		}
		if _, err := fs.Stat(templates, def.TemplateID); err != nil {
			t.Errorf("%s references missing template %q", def.Path, def.TemplateID)
		}
	}
}

func TestEmbeddedSchemaCoversKnownPaths(t *testing.T) {
	t.Parallel()

	reg, err := schema.Load(assets.Schema(), assets.SchemaDefinition())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		kind schema.ResolutionKind
	}{
		{".stencil/hooks/pre-commit.sh", schema.ResolvedOwned},
		{".stencil/config.yaml", schema.ResolvedOwned},
		{".vscode/settings.json", schema.ResolvedManaged},
		{"package.json", schema.ResolvedManaged},
		{".stencil/hooks/legacy-lint.sh", schema.ResolvedDeprecated},
		{"random.txt", schema.ResolvedNotFound},
	}
	for _, tt := range tests {
		if got := reg.Resolve(tt.path).Kind; got != tt.kind {
			t.Errorf("Resolve(%q).Kind = %v, want %v", tt.path, got, tt.kind)
		}
	}
}
