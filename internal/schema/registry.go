package schema

import (
	"fmt"
	"sort"
)

// ResolutionKind classifies the ownership category a path resolved to.
type ResolutionKind int

const (
	// ResolvedNotFound means the schema does not mention the path.
	ResolvedNotFound ResolutionKind = iota

	// ResolvedOwned means the path is a fully-owned file.
	ResolvedOwned

	// ResolvedManaged means the path is a managed (fragment) file.
	ResolvedManaged

	// ResolvedDeprecated means the path is scheduled for removal.
	ResolvedDeprecated
)

// Resolution is the result of Registry.Resolve. Exactly one of the
// pointer fields is non-nil, matching Kind.
type Resolution struct {
	Kind       ResolutionKind
	Owned      *FileDefinition
	Managed    *ManagedFileDefinition
	Deprecated *DeprecatedEntry
}

// Registry is the immutable, versioned view of every path the toolkit
// cares about. It is constructed once, validated, and passed explicitly
// into the orchestrator; nothing reads it as ambient state.
type Registry struct {
	version    string
	owned      map[string]FileDefinition
	managed    map[string]ManagedFileDefinition
	deprecated map[string]DeprecatedEntry

	ownedOrder      []string
	managedOrder    []string
	deprecatedOrder []string
}

// New builds a Registry and enforces the ownership invariant: every path
// appears in exactly one of the owned, managed, and deprecated sets.
// Violations return ErrSchemaIntegrity before any file I/O can happen.
func New(version string, owned []FileDefinition, managed []ManagedFileDefinition, deprecated []DeprecatedEntry) (*Registry, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: manifest has no version", ErrSchemaIntegrity)
	}

	r := &Registry{
		version:    version,
		owned:      make(map[string]FileDefinition, len(owned)),
		managed:    make(map[string]ManagedFileDefinition, len(managed)),
		deprecated: make(map[string]DeprecatedEntry, len(deprecated)),
	}

	for _, def := range owned {
		if def.Path == "" {
			return nil, fmt.Errorf("%w: owned file with empty path", ErrSchemaIntegrity)
		}
		if _, dup := r.owned[def.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared owned twice", ErrSchemaIntegrity, def.Path)
		}
		r.owned[def.Path] = def
	}

	for _, def := range managed {
		if def.Path == "" {
			return nil, fmt.Errorf("%w: managed file with empty path", ErrSchemaIntegrity)
		}
		if _, dup := r.owned[def.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared both owned and managed", ErrSchemaIntegrity, def.Path)
		}
		if _, dup := r.managed[def.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared managed twice", ErrSchemaIntegrity, def.Path)
		}
		if len(def.Fragments) == 0 {
			return nil, fmt.Errorf("%w: managed file %q has no fragments", ErrSchemaIntegrity, def.Path)
		}
		for i, frag := range def.Fragments {
			if err := validateFragment(def.Path, i, frag); err != nil {
				return nil, err
			}
		}
		r.managed[def.Path] = def
	}

	for _, entry := range deprecated {
		if entry.Path == "" {
			return nil, fmt.Errorf("%w: deprecated entry with empty path", ErrSchemaIntegrity)
		}
		// A deprecated path colliding with a live path would mean the
		// schema resurrects what it also deletes. Hard error, no
		// "resurrection" edge case.
		if _, dup := r.owned[entry.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared both owned and deprecated", ErrSchemaIntegrity, entry.Path)
		}
		if _, dup := r.managed[entry.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared both managed and deprecated", ErrSchemaIntegrity, entry.Path)
		}
		if _, dup := r.deprecated[entry.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared deprecated twice", ErrSchemaIntegrity, entry.Path)
		}
		r.deprecated[entry.Path] = entry
	}

	r.ownedOrder = sortedKeys(r.owned)
	r.managedOrder = sortedKeys(r.managed)
	r.deprecatedOrder = sortedKeys(r.deprecated)

	return r, nil
}

// validateFragment checks the per-strategy payload contract.
func validateFragment(path string, idx int, frag Fragment) error {
	switch frag.Strategy {
	case DeepMergeMissingKeys:
		if _, ok := frag.Payload.(map[string]any); !ok {
			return fmt.Errorf("%w: %q fragment %d: deep-merge payload must be a mapping", ErrSchemaIntegrity, path, idx)
		}
	case ArrayUnionByKey:
		if _, ok := frag.Payload.([]any); !ok {
			return fmt.Errorf("%w: %q fragment %d: array-union payload must be a list", ErrSchemaIntegrity, path, idx)
		}
	case ScriptAppend:
		if _, ok := frag.Payload.(map[string]any); !ok {
			return fmt.Errorf("%w: %q fragment %d: script-append payload must be a mapping", ErrSchemaIntegrity, path, idx)
		}
	default:
		return fmt.Errorf("%w: %q fragment %d: unknown strategy", ErrSchemaIntegrity, path, idx)
	}
	return nil
}

// Version returns the schema version string.
func (r *Registry) Version() string {
	return r.version
}

// Resolve reports which ownership category a path belongs to.
func (r *Registry) Resolve(path string) Resolution {
	if def, ok := r.owned[path]; ok {
		return Resolution{Kind: ResolvedOwned, Owned: &def}
	}
	if def, ok := r.managed[path]; ok {
		return Resolution{Kind: ResolvedManaged, Managed: &def}
	}
	if entry, ok := r.deprecated[path]; ok {
		return Resolution{Kind: ResolvedDeprecated, Deprecated: &entry}
	}
	return Resolution{Kind: ResolvedNotFound}
}

// OwnedFiles returns all owned definitions in stable path order.
func (r *Registry) OwnedFiles() []FileDefinition {
	out := make([]FileDefinition, 0, len(r.ownedOrder))
	for _, p := range r.ownedOrder {
		out = append(out, r.owned[p])
	}
	return out
}

// ManagedFiles returns all managed definitions in stable path order.
func (r *Registry) ManagedFiles() []ManagedFileDefinition {
	out := make([]ManagedFileDefinition, 0, len(r.managedOrder))
	for _, p := range r.managedOrder {
		out = append(out, r.managed[p])
	}
	return out
}

// DeprecatedEntries returns all deprecations in stable path order.
func (r *Registry) DeprecatedEntries() []DeprecatedEntry {
	out := make([]DeprecatedEntry, 0, len(r.deprecatedOrder))
	for _, p := range r.deprecatedOrder {
		out = append(out, r.deprecated[p])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
