package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// maxManifestSize rejects pathological schema manifests before parsing.
const maxManifestSize = 4 * 1024 * 1024 // 4MB

// manifestDoc is the YAML wire form of a schema manifest.
type manifestDoc struct {
	Version    string          `yaml:"version"`
	Owned      []ownedDoc      `yaml:"owned"`
	Managed    []managedDoc    `yaml:"managed"`
	Deprecated []deprecatedDoc `yaml:"deprecated"`
}

type ownedDoc struct {
	Path       string `yaml:"path"`
	Ownership  string `yaml:"ownership"`
	Template   string `yaml:"template"`
	Executable bool   `yaml:"executable"`
}

type managedDoc struct {
	Path      string        `yaml:"path"`
	Format    string        `yaml:"format"`
	Fragments []fragmentDoc `yaml:"fragments"`
}

type fragmentDoc struct {
	Strategy   string `yaml:"strategy"`
	Target     string `yaml:"target"`
	MatchField string `yaml:"match-field"`
	MatchMode  string `yaml:"match-mode"`
	Payload    any    `yaml:"payload"`
}

type deprecatedDoc struct {
	Path         string   `yaml:"path"`
	Kind         string   `yaml:"kind"`
	Since        string   `yaml:"since"`
	Fingerprints []string `yaml:"fingerprints"`
	Children     []string `yaml:"children"`
}

// Load parses and validates a schema manifest and builds the Registry.
// The manifest is checked against the given JSON Schema definition before
// decoding, so structural mistakes surface as ErrManifestInvalid with
// every violation listed, not as a partial decode.
func Load(manifest, definition []byte) (*Registry, error) {
	if len(manifest) > maxManifestSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrManifestTooLarge, len(manifest), maxManifestSize)
	}

	if err := validateAgainstDefinition(manifest, definition); err != nil {
		return nil, err
	}

	var doc manifestDoc
	if err := yaml.Unmarshal(manifest, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	owned := make([]FileDefinition, 0, len(doc.Owned))
	for _, o := range doc.Owned {
		ownership, err := parseOwnership(o.Ownership)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrManifestInvalid, o.Path, err)
		}
		owned = append(owned, FileDefinition{
			Path:       filepath.ToSlash(o.Path),
			Ownership:  ownership,
			TemplateID: o.Template,
			Executable: o.Executable,
		})
	}

	managed := make([]ManagedFileDefinition, 0, len(doc.Managed))
	for _, m := range doc.Managed {
		format, err := parseFormat(m.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrManifestInvalid, m.Path, err)
		}
		fragments := make([]Fragment, 0, len(m.Fragments))
		for i, f := range m.Fragments {
			frag, err := parseFragment(f)
			if err != nil {
				return nil, fmt.Errorf("%w: %q fragment %d: %v", ErrManifestInvalid, m.Path, i, err)
			}
			fragments = append(fragments, frag)
		}
		managed = append(managed, ManagedFileDefinition{
			Path:      filepath.ToSlash(m.Path),
			Format:    format,
			Fragments: fragments,
		})
	}

	deprecated := make([]DeprecatedEntry, 0, len(doc.Deprecated))
	for _, d := range doc.Deprecated {
		kind, err := parsePathKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrManifestInvalid, d.Path, err)
		}
		deprecated = append(deprecated, DeprecatedEntry{
			Path:         filepath.ToSlash(d.Path),
			Kind:         kind,
			Since:        d.Since,
			Fingerprints: d.Fingerprints,
			Children:     d.Children,
		})
	}

	return New(doc.Version, owned, managed, deprecated)
}

// LoadFile reads a schema manifest from disk. Used for --schema overrides;
// the shipped manifest comes from the embedded assets.
func LoadFile(path string, definition []byte) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat schema manifest: %w", err)
	}
	if info.Size() > maxManifestSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrManifestTooLarge, info.Size(), maxManifestSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema manifest: %w", err)
	}
	return Load(data, definition)
}

// validateAgainstDefinition checks the YAML manifest against a JSON Schema.
// The YAML is decoded generically and re-encoded as JSON because
// gojsonschema only consumes JSON documents.
func validateAgainstDefinition(manifest, definition []byte) error {
	var generic any
	if err := yaml.Unmarshal(manifest, &generic); err != nil {
		return fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	asJSON, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(definition),
		gojsonschema.NewBytesLoader(asJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%w:\n%s", ErrManifestInvalid, strings.Join(details, "\n"))
	}

	return nil
}

func parseOwnership(s string) (Ownership, error) {
	switch s {
	case "always-regenerate":
		return AlwaysRegenerate, nil
	case "create-once":
		return CreateOnce, nil
	default:
		return 0, fmt.Errorf("unknown ownership %q", s)
	}
}

func parseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "yaml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

func parsePathKind(s string) (PathKind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "directory":
		return KindDirectory, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

func parseFragment(f fragmentDoc) (Fragment, error) {
	var kind StrategyKind
	switch f.Strategy {
	case "deep-merge":
		kind = DeepMergeMissingKeys
	case "array-union":
		kind = ArrayUnionByKey
	case "script-append":
		kind = ScriptAppend
	default:
		return Fragment{}, fmt.Errorf("unknown strategy %q", f.Strategy)
	}

	mode := MatchExact
	switch f.MatchMode {
	case "", "exact":
	case "substring":
		mode = MatchSubstring
	default:
		return Fragment{}, fmt.Errorf("unknown match-mode %q", f.MatchMode)
	}

	if kind == ArrayUnionByKey && f.MatchField == "" {
		return Fragment{}, fmt.Errorf("array-union requires match-field")
	}

	return Fragment{
		Strategy:   kind,
		Target:     f.Target,
		MatchField: f.MatchField,
		MatchMode:  mode,
		Payload:    normalizePayload(f.Payload),
	}, nil
}

// normalizePayload converts yaml.v3's map[string]any trees as-is and
// leaves scalars alone. yaml.v3 already decodes mappings with string keys
// into map[string]any, so this only guards against map[any]any leaking
// from hand-built payloads in tests.
func normalizePayload(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizePayload(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizePayload(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizePayload(val)
		}
		return out
	default:
		return v
	}
}
