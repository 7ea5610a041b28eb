// Package merge implements the fragment strategies a managed file is
// combined with: deep-merge of missing keys, array union by semantic key,
// and flat script-map append. Every strategy is a pure function over
// decoded documents; conflicts are values, never panics.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stencilhq/stencil/internal/schema"
	"gopkg.in/yaml.v3"
)

// ParseDocument decodes managed-file content. Empty or missing content
// parses as an empty document so a first merge can create the file.
func ParseDocument(format schema.Format, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	switch format {
	case schema.FormatJSON:
		var doc any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
		return doc, nil
	case schema.FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml document: %w", err)
		}
		if doc == nil {
			return map[string]any{}, nil
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unknown document format %v", format)
	}
}

// EncodeDocument re-encodes a merged document. JSON output is indented
// with two spaces and newline-terminated, matching what editors produce.
func EncodeDocument(format schema.Format, doc any) ([]byte, error) {
	switch format {
	case schema.FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json document: %w", err)
		}
		return append(data, '\n'), nil
	case schema.FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode yaml document: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown document format %v", format)
	}
}

// deepCopy clones a decoded document so strategies stay pure.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
