package merge

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stencilhq/stencil/internal/schema"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	t.Run("empty content parses as empty mapping", func(t *testing.T) {
		t.Parallel()
		for _, format := range []schema.Format{schema.FormatJSON, schema.FormatYAML} {
			doc, err := ParseDocument(format, nil)
			if err != nil {
				t.Fatalf("ParseDocument(%v, nil) error = %v", format, err)
			}
			m, ok := doc.(map[string]any)
			if !ok || len(m) != 0 {
				t.Errorf("ParseDocument(%v, nil) = %#v, want empty map", format, doc)
			}
		}
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseDocument(schema.FormatJSON, []byte("{ nope")); err == nil {
			t.Error("ParseDocument accepted malformed json")
		}
	})

	t.Run("yaml mapping decodes with string keys", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseDocument(schema.FormatYAML, []byte("a:\n  b: 1\n"))
		if err != nil {
			t.Fatalf("ParseDocument() error = %v", err)
		}
		outer, ok := doc.(map[string]any)
		if !ok {
			t.Fatalf("got %T, want map[string]any", doc)
		}
		if _, ok := outer["a"].(map[string]any); !ok {
			t.Errorf("nested mapping type = %T, want map[string]any", outer["a"])
		}
	})
}

func TestEncodeDocumentJSON(t *testing.T) {
	t.Parallel()

	data, err := EncodeDocument(schema.FormatJSON, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("EncodeDocument() error = %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("json output not newline-terminated")
	}
	if !strings.Contains(string(data), "  \"a\"") {
		t.Errorf("json output not two-space indented: %q", data)
	}
}

func TestJSONRoundTripPreservesExistingContent(t *testing.T) {
	t.Parallel()

	in := []byte("{\n  \"a\": \"x\",\n  \"n\": 3\n}\n")
	doc, err := ParseDocument(schema.FormatJSON, in)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	out, err := EncodeDocument(schema.FormatJSON, doc)
	if err != nil {
		t.Fatalf("EncodeDocument() error = %v", err)
	}
	doc2, err := ParseDocument(schema.FormatJSON, out)
	if err != nil {
		t.Fatalf("reparse error = %v", err)
	}
	if !reflect.DeepEqual(doc, doc2) {
		t.Errorf("round trip changed document: %#v vs %#v", doc, doc2)
	}
}
