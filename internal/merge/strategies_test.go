package merge

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/stencilhq/stencil/internal/schema"
)

func TestApplyDeepMergeMissingKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		doc       map[string]any
		payload   map[string]any
		target    string
		want      map[string]any
		wantAdded []string
	}{
		{
			name:      "adds absent keys",
			doc:       map[string]any{"a": "user"},
			payload:   map[string]any{"b": true},
			want:      map[string]any{"a": "user", "b": true},
			wantAdded: []string{"b"},
		},
		{
			name:      "existing keys win over defaults",
			doc:       map[string]any{"a": "user"},
			payload:   map[string]any{"a": "default", "b": 1},
			want:      map[string]any{"a": "user", "b": 1},
			wantAdded: []string{"b"},
		},
		{
			name: "recurses into nested mappings",
			doc:  map[string]any{"outer": map[string]any{"kept": "x"}},
			payload: map[string]any{
				"outer": map[string]any{"kept": "default", "new": "y"},
			},
			want: map[string]any{
				"outer": map[string]any{"kept": "x", "new": "y"},
			},
			wantAdded: []string{"outer.new"},
		},
		{
			name:      "arrays are leaves, never merged",
			doc:       map[string]any{"list": []any{"user"}},
			payload:   map[string]any{"list": []any{"default1", "default2"}},
			want:      map[string]any{"list": []any{"user"}},
			wantAdded: nil,
		},
		{
			name:      "type mismatch keeps user value",
			doc:       map[string]any{"a": "scalar"},
			payload:   map[string]any{"a": map[string]any{"nested": 1}},
			want:      map[string]any{"a": "scalar"},
			wantAdded: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			frag := schema.Fragment{
				Strategy: schema.DeepMergeMissingKeys,
				Target:   tt.target,
				Payload:  tt.payload,
			}
			got, added, err := Apply(tt.doc, frag)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !reflect.DeepEqual(got, anyOf(tt.want)) {
				t.Errorf("Apply() = %#v, want %#v", got, tt.want)
			}
			sort.Strings(added)
			wantAdded := append([]string(nil), tt.wantAdded...)
			sort.Strings(wantAdded)
			if !reflect.DeepEqual(added, wantAdded) {
				t.Errorf("added = %v, want %v", added, wantAdded)
			}
		})
	}
}

// anyOf forces the comparison type to any, matching Apply's return.
func anyOf(m map[string]any) any { return m }

func TestApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"nested": map[string]any{"a": 1}}
	frag := schema.Fragment{
		Strategy: schema.DeepMergeMissingKeys,
		Payload:  map[string]any{"nested": map[string]any{"b": 2}},
	}
	if _, _, err := Apply(doc, frag); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, leaked := doc["nested"].(map[string]any)["b"]; leaked {
		t.Error("Apply mutated the input document")
	}
}

func TestApplyArrayUnionByKey(t *testing.T) {
	t.Parallel()

	entry := func(label, cmd string) map[string]any {
		return map[string]any{"label": label, "command": cmd}
	}

	t.Run("appends only entries with new keys", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"tasks": []any{entry("build", "make")}}
		frag := schema.Fragment{
			Strategy:   schema.ArrayUnionByKey,
			Target:     "tasks",
			MatchField: "label",
			Payload:    []any{entry("build", "other"), entry("lint", "run lint")},
		}
		got, added, err := Apply(doc, frag)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		tasks := got.(map[string]any)["tasks"].([]any)
		if len(tasks) != 2 {
			t.Fatalf("got %d tasks, want 2", len(tasks))
		}
		// Existing entry is untouched and keeps its position.
		if !reflect.DeepEqual(tasks[0], entry("build", "make")) {
			t.Errorf("existing entry changed: %#v", tasks[0])
		}
		if len(added) != 1 {
			t.Errorf("added = %v, want one entry", added)
		}
	})

	t.Run("idempotent on second application", func(t *testing.T) {
		t.Parallel()
		frag := schema.Fragment{
			Strategy:   schema.ArrayUnionByKey,
			Target:     "tasks",
			MatchField: "label",
			Payload:    []any{entry("lint", "run lint")},
		}
		doc := any(map[string]any{"tasks": []any{}})
		for i := 0; i < 2; i++ {
			var err error
			doc, _, err = Apply(doc, frag)
			if err != nil {
				t.Fatalf("Apply() round %d error = %v", i, err)
			}
		}
		tasks := doc.(map[string]any)["tasks"].([]any)
		if len(tasks) != 1 {
			t.Errorf("got %d tasks after two applies, want 1", len(tasks))
		}
	})

	t.Run("substring match treats overlapping commands as duplicates", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{
			"hooks": []any{map[string]any{"command": "bash scripts/run-lint.sh --fix"}},
		}
		frag := schema.Fragment{
			Strategy:   schema.ArrayUnionByKey,
			Target:     "hooks",
			MatchField: "command",
			MatchMode:  schema.MatchSubstring,
			Payload:    []any{map[string]any{"command": "scripts/run-lint.sh"}},
		}
		got, added, err := Apply(doc, frag)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		hooks := got.(map[string]any)["hooks"].([]any)
		if len(hooks) != 1 || len(added) != 0 {
			t.Errorf("substring duplicate was appended: hooks=%d added=%v", len(hooks), added)
		}
	})

	t.Run("missing anchor is a conflict", func(t *testing.T) {
		t.Parallel()
		frag := schema.Fragment{
			Strategy:   schema.ArrayUnionByKey,
			Target:     "missing.tasks",
			MatchField: "label",
			Payload:    []any{entry("a", "b")},
		}
		_, _, err := Apply(map[string]any{}, frag)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("Apply() error = %v, want *ConflictError", err)
		}
	})

	t.Run("anchor of wrong type is a conflict", func(t *testing.T) {
		t.Parallel()
		frag := schema.Fragment{
			Strategy:   schema.ArrayUnionByKey,
			Target:     "tasks",
			MatchField: "label",
			Payload:    []any{entry("a", "b")},
		}
		_, _, err := Apply(map[string]any{"tasks": "not an array"}, frag)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("Apply() error = %v, want *ConflictError", err)
		}
	})
}

func TestApplyScriptAppend(t *testing.T) {
	t.Parallel()

	frag := schema.Fragment{
		Strategy: schema.ScriptAppend,
		Target:   "scripts",
		Payload: map[string]any{
			"precommit": "bash hooks/pre-commit.sh",
		},
	}

	t.Run("adds absent key", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"scripts": map[string]any{"test": "go test"}}
		got, added, err := Apply(doc, frag)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		scripts := got.(map[string]any)["scripts"].(map[string]any)
		if scripts["precommit"] != "bash hooks/pre-commit.sh" {
			t.Errorf("precommit = %v", scripts["precommit"])
		}
		if want := []string{"scripts.precommit"}; !reflect.DeepEqual(added, want) {
			t.Errorf("added = %v, want %v", added, want)
		}
	})

	t.Run("existing value wins", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"scripts": map[string]any{"precommit": "my own hook"}}
		got, added, err := Apply(doc, frag)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		scripts := got.(map[string]any)["scripts"].(map[string]any)
		if scripts["precommit"] != "my own hook" {
			t.Errorf("existing value was overwritten: %v", scripts["precommit"])
		}
		if len(added) != 0 {
			t.Errorf("added = %v, want none", added)
		}
	})

	t.Run("creates the whole table when absent", func(t *testing.T) {
		t.Parallel()
		got, added, err := Apply(map[string]any{}, frag)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		scripts, ok := got.(map[string]any)["scripts"].(map[string]any)
		if !ok || scripts["precommit"] != "bash hooks/pre-commit.sh" {
			t.Errorf("scripts table not created: %#v", got)
		}
		if want := []string{"scripts"}; !reflect.DeepEqual(added, want) {
			t.Errorf("added = %v, want %v", added, want)
		}
	})
}
