package merge

import (
	"fmt"
	"strings"
)

// editOp is a line-level edit operation.
type editOp int

const (
	opEqual editOp = iota
	opInsert
	opDelete
)

// edit pairs an operation with the line text it concerns.
type edit struct {
	op   editOp
	text string
}

// diffLines computes an LCS-based edit script transforming a into b.
func diffLines(a, b []string) []edit {
	m, n := len(a), len(b)

	// dp[i][j] = length of LCS of a[:i] and b[:j]
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			switch {
			case a[i-1] == b[j-1]:
				dp[i][j] = dp[i-1][j-1] + 1
			case dp[i-1][j] >= dp[i][j-1]:
				dp[i][j] = dp[i-1][j]
			default:
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	// Backtrack into a forward-ordered edit script.
	var rev []edit
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			rev = append(rev, edit{op: opEqual, text: a[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]):
			rev = append(rev, edit{op: opInsert, text: b[j-1]})
			j--
		default:
			rev = append(rev, edit{op: opDelete, text: a[i-1]})
			i--
		}
	}

	out := make([]edit, len(rev))
	for k, e := range rev {
		out[len(rev)-1-k] = e
	}
	return out
}

// UnifiedDiff renders a unified diff of base against current with three
// lines of context per hunk. Returns "" when the contents are identical.
// Used by check mode to show what a drifted file diverged by.
func UnifiedDiff(filename string, base, current []byte) string {
	edits := diffLines(splitLines(string(base)), splitLines(string(current)))

	changed := false
	for _, e := range edits {
		if e.op != opEqual {
			changed = true
			break
		}
	}
	if !changed {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n", filename)
	fmt.Fprintf(&sb, "+++ b/%s\n", filename)

	const contextLines = 3

	// Hunk boundaries: ranges of edits within contextLines of a change.
	type span struct{ start, end int }
	var spans []span
	for i := 0; i < len(edits); i++ {
		if edits[i].op == opEqual {
			continue
		}
		start := max(i-contextLines, 0)
		end := i
		// Extend through subsequent changes separated by small gaps.
		for k := i + 1; k < len(edits) && k <= end+2*contextLines+1; k++ {
			if edits[k].op != opEqual {
				end = k
			}
		}
		end = min(end+contextLines, len(edits)-1)
		if len(spans) > 0 && start <= spans[len(spans)-1].end+1 {
			spans[len(spans)-1].end = end
		} else {
			spans = append(spans, span{start: start, end: end})
		}
		i = end
	}

	// Emit hunks, tracking line numbers through the full edit script.
	aLine, bLine := 1, 1
	next := 0
	for idx, e := range edits {
		if next < len(spans) && idx == spans[next].start {
			h := spans[next]
			aStart, bStart := aLine, bLine
			aCount, bCount := 0, 0
			for _, he := range edits[h.start : h.end+1] {
				switch he.op {
				case opEqual:
					aCount++
					bCount++
				case opDelete:
					aCount++
				case opInsert:
					bCount++
				}
			}
			fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", aStart, aCount, bStart, bCount)
			for _, he := range edits[h.start : h.end+1] {
				switch he.op {
				case opEqual:
					sb.WriteString(" " + he.text + "\n")
				case opDelete:
					sb.WriteString("-" + he.text + "\n")
				case opInsert:
					sb.WriteString("+" + he.text + "\n")
				}
			}
			next++
		}
		switch e.op {
		case opEqual:
			aLine++
			bLine++
		case opDelete:
			aLine++
		case opInsert:
			bLine++
		}
	}

	return sb.String()
}

// splitLines splits content into lines, dropping the trailing empty line
// a final newline would produce.
func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
