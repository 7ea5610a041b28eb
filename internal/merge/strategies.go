package merge

import (
	"fmt"
	"strings"

	"github.com/stencilhq/stencil/internal/schema"
)

// ConflictError reports a fragment whose expected anchor structure is not
// present in the document. It is recoverable: the orchestrator records a
// blocked action and keeps going.
type ConflictError struct {
	// Target is the fragment's dotted anchor path.
	Target string

	// Reason explains what was missing or mistyped.
	Reason string
}

// Error implements error.
func (e *ConflictError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("merge conflict at document root: %s", e.Reason)
	}
	return fmt.Sprintf("merge conflict at %q: %s", e.Target, e.Reason)
}

// Apply runs one fragment against a decoded document and returns the
// merged document plus the dotted paths it added. The input document is
// never mutated. A *ConflictError return leaves the caller free to
// continue with other fragments.
func Apply(doc any, frag schema.Fragment) (any, []string, error) {
	out := deepCopy(doc)

	switch frag.Strategy {
	case schema.DeepMergeMissingKeys:
		return applyDeepMerge(out, frag)
	case schema.ArrayUnionByKey:
		return applyArrayUnion(out, frag)
	case schema.ScriptAppend:
		return applyScriptAppend(out, frag)
	default:
		return nil, nil, fmt.Errorf("unknown merge strategy %v", frag.Strategy)
	}
}

// applyDeepMerge adds payload keys absent from the target mapping at any
// depth. Existing keys always win, even when the value differs from the
// payload default. Arrays are leaves: replaced only when the key itself is
// absent, never merged element-wise.
func applyDeepMerge(doc any, frag schema.Fragment) (any, []string, error) {
	target, err := resolveTarget(doc, frag.Target)
	if err != nil {
		return nil, nil, err
	}
	dst, ok := target.(map[string]any)
	if !ok {
		return nil, nil, &ConflictError{Target: frag.Target, Reason: "anchor is not a mapping"}
	}

	payload, ok := frag.Payload.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("deep-merge payload is not a mapping")
	}

	added := deepMergeMissing(dst, payload, frag.Target)
	return doc, added, nil
}

// deepMergeMissing merges src into dst in place and returns the dotted
// paths of every key it added. dst is already a private copy.
func deepMergeMissing(dst, src map[string]any, prefix string) []string {
	var added []string

	for key, srcVal := range src {
		path := joinPath(prefix, key)

		dstVal, exists := dst[key]
		if !exists {
			dst[key] = deepCopy(srcVal)
			added = append(added, path)
			continue
		}

		dstMap, dstIsMap := dstVal.(map[string]any)
		srcMap, srcIsMap := srcVal.(map[string]any)
		if dstIsMap && srcIsMap {
			added = append(added, deepMergeMissing(dstMap, srcMap, path)...)
		}
		// Existing scalar, array, or type mismatch: the user's value
		// stands untouched.
	}

	return added
}

// applyArrayUnion appends payload entries whose extracted key matches no
// existing entry. Existing entries are never reordered or removed.
func applyArrayUnion(doc any, frag schema.Fragment) (any, []string, error) {
	parent, lastKey, err := resolveParent(doc, frag.Target)
	if err != nil {
		return nil, nil, err
	}

	existing, ok := parent[lastKey]
	if !ok {
		// Absent array: the fragment creates it whole.
		parent[lastKey] = deepCopy(frag.Payload)
		return doc, []string{frag.Target}, nil
	}

	arr, ok := existing.([]any)
	if !ok {
		return nil, nil, &ConflictError{Target: frag.Target, Reason: "anchor is not an array"}
	}

	payload, ok := frag.Payload.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("array-union payload is not a list")
	}

	existingKeys := make([]string, 0, len(arr))
	for _, entry := range arr {
		if key, ok := extractKey(entry, frag.MatchField); ok {
			existingKeys = append(existingKeys, key)
		}
	}

	var added []string
	for _, entry := range payload {
		key, ok := extractKey(entry, frag.MatchField)
		if !ok {
			return nil, nil, &ConflictError{
				Target: frag.Target,
				Reason: fmt.Sprintf("payload entry has no %q key", frag.MatchField),
			}
		}
		if keyPresent(existingKeys, key, frag.MatchMode) {
			continue
		}
		arr = append(arr, deepCopy(entry))
		existingKeys = append(existingKeys, key)
		added = append(added, joinPath(frag.Target, key))
	}

	parent[lastKey] = arr
	return doc, added, nil
}

// extractKey pulls the identifying key out of an array entry. Mapping
// entries use the match field; plain string entries are their own key.
func extractKey(entry any, matchField string) (string, bool) {
	switch t := entry.(type) {
	case map[string]any:
		v, ok := t[matchField]
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		return s, ok
	case string:
		return t, true
	default:
		return "", false
	}
}

// keyPresent reports whether key is semantically already registered.
func keyPresent(existing []string, key string, mode schema.MatchMode) bool {
	for _, have := range existing {
		switch mode {
		case schema.MatchSubstring:
			if strings.Contains(have, key) || strings.Contains(key, have) {
				return true
			}
		default:
			if have == key {
				return true
			}
		}
	}
	return false
}

// applyScriptAppend adds absent keys to a flat string-keyed map, such as
// a command-shortcut table. Existing values always win.
func applyScriptAppend(doc any, frag schema.Fragment) (any, []string, error) {
	parent, lastKey, err := resolveParent(doc, frag.Target)
	if err != nil {
		return nil, nil, err
	}

	existing, ok := parent[lastKey]
	if !ok {
		parent[lastKey] = deepCopy(frag.Payload)
		return doc, []string{frag.Target}, nil
	}

	dst, ok := existing.(map[string]any)
	if !ok {
		return nil, nil, &ConflictError{Target: frag.Target, Reason: "anchor is not a mapping"}
	}

	payload, ok := frag.Payload.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("script-append payload is not a mapping")
	}

	var added []string
	for key, val := range payload {
		if _, exists := dst[key]; exists {
			continue
		}
		dst[key] = deepCopy(val)
		added = append(added, joinPath(frag.Target, key))
	}

	return doc, added, nil
}

// resolveTarget walks a dotted path and returns the node it names.
// An empty path returns the document root.
func resolveTarget(doc any, target string) (any, error) {
	if target == "" {
		return doc, nil
	}

	node := doc
	for _, seg := range strings.Split(target, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, &ConflictError{Target: target, Reason: fmt.Sprintf("segment %q is not a mapping", seg)}
		}
		next, ok := m[seg]
		if !ok {
			return nil, &ConflictError{Target: target, Reason: fmt.Sprintf("segment %q not found", seg)}
		}
		node = next
	}
	return node, nil
}

// resolveParent walks a dotted path to the mapping that holds its final
// segment, so the caller can create the final node if it is absent.
// Intermediate segments must already exist.
func resolveParent(doc any, target string) (map[string]any, string, error) {
	if target == "" {
		return nil, "", &ConflictError{Target: target, Reason: "strategy requires a target path"}
	}

	segs := strings.Split(target, ".")
	node := doc
	for _, seg := range segs[:len(segs)-1] {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, "", &ConflictError{Target: target, Reason: fmt.Sprintf("segment %q is not a mapping", seg)}
		}
		next, ok := m[seg]
		if !ok {
			return nil, "", &ConflictError{Target: target, Reason: fmt.Sprintf("segment %q not found", seg)}
		}
		node = next
	}

	parent, ok := node.(map[string]any)
	if !ok {
		return nil, "", &ConflictError{Target: target, Reason: "parent of anchor is not a mapping"}
	}
	return parent, segs[len(segs)-1], nil
}

// joinPath concatenates dotted path segments, tolerating an empty prefix.
func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
