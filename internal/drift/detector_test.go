package drift

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	const (
		hashA = "aaaa"
		hashB = "bbbb"
		hashC = "cccc"
	)

	tests := []struct {
		name string
		in   Input
		want Classification
	}{
		{
			name: "no record means first apply",
			in:   Input{Exists: false, HasRecord: false, TemplateHash: hashA},
			want: FirstApply,
		},
		{
			name: "no record with existing file is still first apply",
			in:   Input{Exists: true, CurrentHash: hashB, HasRecord: false, TemplateHash: hashA},
			want: FirstApply,
		},
		{
			name: "record but file gone",
			in:   Input{Exists: false, HasRecord: true, LastAppliedHash: hashA, TemplateHash: hashA},
			want: Missing,
		},
		{
			name: "disk matches record and template",
			in:   Input{Exists: true, CurrentHash: hashA, HasRecord: true, LastAppliedHash: hashA, TemplateHash: hashA},
			want: Unchanged,
		},
		{
			name: "disk matches record, template moved",
			in:   Input{Exists: true, CurrentHash: hashA, HasRecord: true, LastAppliedHash: hashA, TemplateHash: hashB},
			want: TemplateOnlyChanged,
		},
		{
			name: "disk diverged from record",
			in:   Input{Exists: true, CurrentHash: hashC, HasRecord: true, LastAppliedHash: hashA, TemplateHash: hashA},
			want: UserModified,
		},
		{
			name: "disk diverged even when template also moved",
			in:   Input{Exists: true, CurrentHash: hashC, HasRecord: true, LastAppliedHash: hashA, TemplateHash: hashB},
			want: UserModified,
		},
		{
			name: "create-once file that exists is user territory",
			in:   Input{Exists: true, CurrentHash: hashA, HasRecord: true, LastAppliedHash: hashA, TemplateHash: hashA, CreateOnce: true},
			want: UserModified,
		},
		{
			name: "create-once without record or file",
			in:   Input{Exists: false, HasRecord: false, TemplateHash: hashA, CreateOnce: true},
			want: FirstApply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNeedsWrite(t *testing.T) {
	t.Parallel()

	writes := map[Classification]bool{
		Unchanged:           false,
		TemplateOnlyChanged: true,
		UserModified:        false,
		Missing:             true,
		FirstApply:          true,
	}
	for c, want := range writes {
		if got := c.NeedsWrite(); got != want {
			t.Errorf("%v.NeedsWrite() = %v, want %v", c, got, want)
		}
	}
}
