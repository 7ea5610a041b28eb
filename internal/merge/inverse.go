package merge

import (
	"fmt"
	"reflect"

	"github.com/stencilhq/stencil/internal/schema"
)

// Retract removes a fragment's pristine contributions from a document,
// the inverse of Apply for reset mode. A key or entry is removed only
// while its value still deep-equals what the fragment would contribute;
// anything the user has re-pointed stays. The input document is never
// mutated.
func Retract(doc any, frag schema.Fragment) (any, []string, error) {
	out := deepCopy(doc)

	switch frag.Strategy {
	case schema.DeepMergeMissingKeys:
		return retractDeepMerge(out, frag)
	case schema.ArrayUnionByKey:
		return retractArrayUnion(out, frag)
	case schema.ScriptAppend:
		return retractScriptAppend(out, frag)
	default:
		return nil, nil, fmt.Errorf("unknown merge strategy %v", frag.Strategy)
	}
}

func retractDeepMerge(doc any, frag schema.Fragment) (any, []string, error) {
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

	removed := retractMissing(dst, payload, frag.Target)
	return doc, removed, nil
}

// retractMissing removes keys whose values still equal the payload
// defaults. Nested mappings are descended; a mapping emptied entirely by
// retraction is itself removed.
func retractMissing(dst, src map[string]any, prefix string) []string {
	var removed []string

	for key, srcVal := range src {
		path := joinPath(prefix, key)

		dstVal, exists := dst[key]
		if !exists {
			continue
		}

		if reflect.DeepEqual(dstVal, srcVal) {
			delete(dst, key)
			removed = append(removed, path)
			continue
		}

		dstMap, dstIsMap := dstVal.(map[string]any)
		srcMap, srcIsMap := srcVal.(map[string]any)
		if dstIsMap && srcIsMap {
			removed = append(removed, retractMissing(dstMap, srcMap, path)...)
			if len(dstMap) == 0 {
				delete(dst, key)
			}
		}
	}

	return removed
}

func retractArrayUnion(doc any, frag schema.Fragment) (any, []string, error) {
	parent, lastKey, err := resolveParent(doc, frag.Target)
	if err != nil {
		return nil, nil, err
	}

	existing, ok := parent[lastKey]
	if !ok {
		return doc, nil, nil
	}
	arr, ok := existing.([]any)
	if !ok {
		return nil, nil, &ConflictError{Target: frag.Target, Reason: "anchor is not an array"}
	}

	payload, ok := frag.Payload.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("array-union payload is not a list")
	}

	var removed []string
	kept := make([]any, 0, len(arr))
	for _, entry := range arr {
		pristine := false
		for _, p := range payload {
			if reflect.DeepEqual(entry, p) {
				pristine = true
				break
			}
		}
		if pristine {
			key, _ := extractKey(entry, frag.MatchField)
			removed = append(removed, joinPath(frag.Target, key))
			continue
		}
		kept = append(kept, entry)
	}

	if len(kept) == 0 {
		delete(parent, lastKey)
	} else {
		parent[lastKey] = kept
	}
	return doc, removed, nil
}

func retractScriptAppend(doc any, frag schema.Fragment) (any, []string, error) {
	parent, lastKey, err := resolveParent(doc, frag.Target)
	if err != nil {
		return nil, nil, err
	}

	existing, ok := parent[lastKey]
	if !ok {
		return doc, nil, nil
	}
	dst, ok := existing.(map[string]any)
	if !ok {
		return nil, nil, &ConflictError{Target: frag.Target, Reason: "anchor is not a mapping"}
	}

	payload, ok := frag.Payload.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("script-append payload is not a mapping")
	}

	var removed []string
	for key, val := range payload {
		have, exists := dst[key]
		if !exists || !reflect.DeepEqual(have, val) {
			continue
		}
		delete(dst, key)
		removed = append(removed, joinPath(frag.Target, key))
	}

	if len(dst) == 0 {
		delete(parent, lastKey)
	}
	return doc, removed, nil
}
