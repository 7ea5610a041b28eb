package merge

import (
	"reflect"
	"testing"

	"github.com/stencilhq/stencil/internal/schema"
)

func TestRetractDeepMerge(t *testing.T) {
	t.Parallel()

	frag := schema.Fragment{
		Strategy: schema.DeepMergeMissingKeys,
		Payload: map[string]any{
			"editor.formatOnSave": true,
			"nested":              map[string]any{"added": "x"},
		},
	}

	t.Run("removes pristine contributions", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{
			"editor.formatOnSave": true,
			"mine":                "keep",
			"nested":              map[string]any{"added": "x", "mine": 1},
		}
		got, removed, err := Retract(doc, frag)
		if err != nil {
			t.Fatalf("Retract() error = %v", err)
		}
		want := map[string]any{
			"mine":   "keep",
			"nested": map[string]any{"mine": 1},
		}
		if !reflect.DeepEqual(got, any(want)) {
			t.Errorf("Retract() = %#v, want %#v", got, want)
		}
		if len(removed) != 2 {
			t.Errorf("removed = %v, want 2 paths", removed)
		}
	})

	t.Run("user-changed values stay", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"editor.formatOnSave": false}
		got, removed, err := Retract(doc, frag)
		if err != nil {
			t.Fatalf("Retract() error = %v", err)
		}
		if !reflect.DeepEqual(got, any(map[string]any{"editor.formatOnSave": false})) {
			t.Errorf("user value was removed: %#v", got)
		}
		if len(removed) != 0 {
			t.Errorf("removed = %v, want none", removed)
		}
	})

	t.Run("emptied nested mapping is dropped", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"nested": map[string]any{"added": "x"}}
		got, _, err := Retract(doc, frag)
		if err != nil {
			t.Fatalf("Retract() error = %v", err)
		}
		if _, stillThere := got.(map[string]any)["nested"]; stillThere {
			t.Errorf("emptied mapping kept: %#v", got)
		}
	})
}

func TestRetractArrayUnion(t *testing.T) {
	t.Parallel()

	ours := map[string]any{"label": "stencil: check", "command": "stencil check"}
	theirs := map[string]any{"label": "deploy", "command": "make deploy"}

	frag := schema.Fragment{
		Strategy:   schema.ArrayUnionByKey,
		Target:     "tasks",
		MatchField: "label",
		Payload:    []any{ours},
	}

	t.Run("removes only pristine entries", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"tasks": []any{theirs, ours}}
		got, removed, err := Retract(doc, frag)
		if err != nil {
			t.Fatalf("Retract() error = %v", err)
		}
		tasks := got.(map[string]any)["tasks"].([]any)
		if len(tasks) != 1 || !reflect.DeepEqual(tasks[0], theirs) {
			t.Errorf("tasks = %#v, want only user entry", tasks)
		}
		if len(removed) != 1 {
			t.Errorf("removed = %v, want 1", removed)
		}
	})

	t.Run("edited entry stays", func(t *testing.T) {
		t.Parallel()
		edited := map[string]any{"label": "stencil: check", "command": "stencil check --json"}
		doc := map[string]any{"tasks": []any{edited}}
		got, removed, err := Retract(doc, frag)
		if err != nil {
			t.Fatalf("Retract() error = %v", err)
		}
		tasks := got.(map[string]any)["tasks"].([]any)
		if len(tasks) != 1 || len(removed) != 0 {
			t.Errorf("edited entry removed: tasks=%#v removed=%v", tasks, removed)
		}
	})

	t.Run("emptied array is dropped", func(t *testing.T) {
		t.Parallel()
		doc := map[string]any{"tasks": []any{ours}}
		got, _, err := Retract(doc, frag)
		if err != nil {
			t.Fatalf("Retract() error = %v", err)
		}
		if _, stillThere := got.(map[string]any)["tasks"]; stillThere {
			t.Errorf("emptied array kept: %#v", got)
		}
	})
}

func TestRetractScriptAppend(t *testing.T) {
	t.Parallel()

	frag := schema.Fragment{
		Strategy: schema.ScriptAppend,
		Target:   "scripts",
		Payload:  map[string]any{"precommit": "bash hooks/pre-commit.sh"},
	}

	doc := map[string]any{
		"scripts": map[string]any{
			"precommit": "bash hooks/pre-commit.sh",
			"test":      "go test ./...",
		},
	}
	got, removed, err := Retract(doc, frag)
	if err != nil {
		t.Fatalf("Retract() error = %v", err)
	}
	scripts := got.(map[string]any)["scripts"].(map[string]any)
	if _, stillThere := scripts["precommit"]; stillThere {
		t.Error("pristine script entry kept")
	}
	if scripts["test"] != "go test ./..." {
		t.Error("user script entry removed")
	}
	if len(removed) != 1 {
		t.Errorf("removed = %v, want 1", removed)
	}
}

func TestApplyThenRetractRoundTrip(t *testing.T) {
	t.Parallel()

	original := map[string]any{
		"name":    "demo",
		"scripts": map[string]any{"test": "go test ./..."},
	}
	frag := schema.Fragment{
		Strategy: schema.ScriptAppend,
		Target:   "scripts",
		Payload:  map[string]any{"precommit": "bash hooks/pre-commit.sh"},
	}

	merged, _, err := Apply(original, frag)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	restored, _, err := Retract(merged, frag)
	if err != nil {
		t.Fatalf("Retract() error = %v", err)
	}
	if !reflect.DeepEqual(restored, any(original)) {
		t.Errorf("round trip = %#v, want %#v", restored, original)
	}
}
