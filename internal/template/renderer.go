// Package template renders the embedded file templates that owned files
// are generated from. Rendering is strict: a reference to a missing
// context key fails instead of producing "<no value>", and rendered
// output is scanned for leftover template syntax before it is accepted.
package template

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	texttemplate "text/template"
)

// unexpandedTokenPattern catches template actions that survived
// rendering, which means the template itself is malformed.
var unexpandedTokenPattern = regexp.MustCompile(`{{[^}]*}}`)

// templateFuncMap exposes the helpers templates may call.
func templateFuncMap() texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"jsonEscape": jsonEscape,
		"posixPath":  posixPath,
	}
}

func jsonEscape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\t", `\t`,
	)
	return r.Replace(s)
}

func posixPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Renderer renders templates from an fs.FS bundle.
type Renderer struct {
	bundle fs.FS
}

// NewRenderer creates a Renderer over the given template bundle.
func NewRenderer(bundle fs.FS) *Renderer {
	return &Renderer{bundle: bundle}
}

// Render executes the named template with ctx and verifies the output
// contains no unexpanded tokens.
func (r *Renderer) Render(name string, ctx RenderContext) ([]byte, error) {
	raw, err := fs.ReadFile(r.bundle, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	tmpl, err := texttemplate.New(path.Base(name)).
		Funcs(templateFuncMap()).
		Option("missingkey=error").
		Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		if strings.Contains(err.Error(), "map has no entry") || strings.Contains(err.Error(), "can't evaluate field") {
			return nil, fmt.Errorf("%w: %s: %v", ErrMissingTemplateKey, name, err)
		}
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}

	out := buf.Bytes()
	if tok := unexpandedTokenPattern.Find(out); tok != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpandedToken, name, tok)
	}
	return out, nil
}

// Raw returns the bytes of a non-template asset from the bundle.
func (r *Renderer) Raw(name string) ([]byte, error) {
	data, err := fs.ReadFile(r.bundle, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return data, nil
}

// Source resolves template ids to rendered content for the planner.
// Ids ending in ".tmpl" are rendered, everything else is copied raw.
type Source struct {
	renderer *Renderer
	ctx      RenderContext
}

// NewSource builds a Source over the bundle with a fixed render context.
func NewSource(bundle fs.FS, ctx RenderContext) *Source {
	return &Source{renderer: NewRenderer(bundle), ctx: ctx}
}

// Rendered returns the final bytes for a template id.
func (s *Source) Rendered(templateID string) ([]byte, error) {
	if strings.HasSuffix(templateID, ".tmpl") {
		return s.renderer.Render(templateID, s.ctx)
	}
	return s.renderer.Raw(templateID)
}
