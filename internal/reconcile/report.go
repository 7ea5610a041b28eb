package reconcile

import (
	"fmt"
	"strings"
)

// ReportEntry is the per-path outcome of one action.
type ReportEntry struct {
	Path   string `json:"path"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
	Diff   string `json:"diff,omitempty"`
}

// Report summarizes a reconciliation run. It is stable enough to be
// emitted as JSON for machine consumption and rendered as markdown for
// humans.
type Report struct {
	Mode          string        `json:"mode"`
	SchemaVersion string        `json:"schema_version"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Merged        int           `json:"merged"`
	Unchanged     int           `json:"unchanged"`
	Drifted       int           `json:"drifted"`
	Blocked       int           `json:"blocked"`
	Deleted       int           `json:"deleted"`
	RolledBack    bool          `json:"rolled_back"`
	Failure       string        `json:"failure,omitempty"`
	Entries       []ReportEntry `json:"entries"`
}

func newReport(mode Mode, schemaVersion string) *Report {
	return &Report{Mode: mode.String(), SchemaVersion: schemaVersion}
}

func (r *Report) record(a Action) {
	switch a.Kind {
	case ActionCreate:
		r.Created++
	case ActionUpdate:
		r.Updated++
	case ActionMerge:
		r.Merged++
	case ActionUnchanged:
		r.Unchanged++
	case ActionSkipDrifted:
		r.Drifted++
	case ActionSkipBlocked:
		r.Blocked++
	case ActionDelete:
		r.Deleted++
	}
	r.Entries = append(r.Entries, ReportEntry{
		Path:   a.Path,
		Action: a.Kind.String(),
		Detail: a.Detail,
		Diff:   a.diff,
	})
}

// HasBlocking reports whether the run contained blocked actions or a
// fatal failure. The check command maps this to a nonzero exit code.
func (r *Report) HasBlocking() bool {
	return r.Blocked > 0 || r.Failure != ""
}

// Markdown renders the report for terminal display.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# stencil %s\n\n", r.Mode)
	fmt.Fprintf(&b, "Schema version: `%s`\n\n", r.SchemaVersion)

	fmt.Fprintf(&b, "| Result | Count |\n|---|---|\n")
	rows := []struct {
		label string
		n     int
	}{
		{"Created", r.Created},
		{"Updated", r.Updated},
		{"Merged", r.Merged},
		{"Unchanged", r.Unchanged},
		{"Drifted", r.Drifted},
		{"Blocked", r.Blocked},
		{"Deleted", r.Deleted},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.label, row.n)
	}
	b.WriteString("\n")

	var notable []ReportEntry
	for _, e := range r.Entries {
		if e.Action == ActionUnchanged.String() {
			continue
		}
		notable = append(notable, e)
	}
	if len(notable) > 0 {
		b.WriteString("## Details\n\n")
		for _, e := range notable {
			if e.Detail != "" {
				fmt.Fprintf(&b, "- **%s** `%s`: %s\n", e.Action, e.Path, e.Detail)
			} else {
				fmt.Fprintf(&b, "- **%s** `%s`\n", e.Action, e.Path)
			}
		}
		b.WriteString("\n")
	}

	for _, e := range r.Entries {
		if e.Diff == "" {
			continue
		}
		fmt.Fprintf(&b, "## Drift in `%s`\n\n```diff\n%s```\n\n", e.Path, e.Diff)
	}

	if r.RolledBack {
		b.WriteString("**Run rolled back.**")
		if r.Failure != "" {
			fmt.Fprintf(&b, " Cause: %s", r.Failure)
		}
		b.WriteString("\n")
	} else if r.Failure != "" {
		fmt.Fprintf(&b, "**Run failed:** %s\n", r.Failure)
	}

	return b.String()
}
