package services

import (
	"strings"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// maxDiffCells bounds the LCS table. Larger middles, after trimming the
// common prefix and suffix, are reported as one modified hunk.
const maxDiffCells = 16 << 20

type editOp byte

const (
	opEqual editOp = iota
	opDelete
	opInsert
)

type edit struct {
	op   editOp
	line string
}

// splitLines splits text into lines without their terminators.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// diffLines computes a line diff of a and b and groups it into hunks with
// up to contextLines unchanged lines on each side.
func diffLines(a, b []string, contextLines int) []domain.Hunk {
	return groupHunks(editScript(a, b), contextLines)
}

// editScript returns an LCS-based edit script turning a into b.
func editScript(a, b []string) []edit {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	script := make([]edit, 0, len(a)+len(b))
	for _, l := range a[:prefix] {
		script = append(script, edit{opEqual, l})
	}
	script = append(script, lcsScript(a[prefix:len(a)-suffix], b[prefix:len(b)-suffix])...)
	for _, l := range a[len(a)-suffix:] {
		script = append(script, edit{opEqual, l})
	}
	return script
}

func lcsScript(a, b []string) []edit {
	n, m := len(a), len(b)
	script := make([]edit, 0, n+m)
	if n*m > maxDiffCells {
		for _, l := range a {
			script = append(script, edit{opDelete, l})
		}
		for _, l := range b {
			script = append(script, edit{opInsert, l})
		}
		return script
	}

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	width := m + 1
	lcs := make([]int32, (n+1)*width)
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i*width+j] = lcs[(i+1)*width+j+1] + 1
			} else {
				lcs[i*width+j] = max(lcs[(i+1)*width+j], lcs[i*width+j+1])
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			script = append(script, edit{opEqual, a[i]})
			i++
			j++
		case lcs[(i+1)*width+j] >= lcs[i*width+j+1]:
			script = append(script, edit{opDelete, a[i]})
			i++
		default:
			script = append(script, edit{opInsert, b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		script = append(script, edit{opDelete, a[i]})
	}
	for ; j < m; j++ {
		script = append(script, edit{opInsert, b[j]})
	}
	return script
}

func groupHunks(script []edit, contextLines int) []domain.Hunk {
	var hunks []domain.Hunk
	for k := 0; k < len(script); {
		if script[k].op == opEqual {
			k++
			continue
		}

		start := k
		var h domain.Hunk
		for k < len(script) && script[k].op != opEqual {
			if script[k].op == opDelete {
				h.Before = append(h.Before, script[k].line)
			} else {
				h.After = append(h.After, script[k].line)
			}
			k++
		}

		switch {
		case len(h.Before) == 0:
			h.Kind = domain.HunkAdded
		case len(h.After) == 0:
			h.Kind = domain.HunkRemoved
		default:
			h.Kind = domain.HunkModified
		}
		h.ContextBefore = equalLines(script, start-1, -1, contextLines)
		h.ContextAfter = equalLines(script, k, 1, contextLines)
		h.WhitespaceOnly = whitespaceOnly(h.Before, h.After)
		hunks = append(hunks, h)
	}
	return hunks
}

// equalLines collects up to n unchanged lines walking from index in step
// direction, returned in document order.
func equalLines(script []edit, index, step, n int) []string {
	var out []string
	for k := index; k >= 0 && k < len(script) && len(out) < n && script[k].op == opEqual; k += step {
		out = append(out, script[k].line)
	}
	if step < 0 {
		for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
			out[l], out[r] = out[r], out[l]
		}
	}
	return out
}

// whitespaceOnly reports whether before and after hold the same words.
// Added or removed blank lines therefore count as whitespace-only.
func whitespaceOnly(before, after []string) bool {
	return strings.Join(strings.Fields(strings.Join(before, " ")), " ") ==
		strings.Join(strings.Fields(strings.Join(after, " ")), " ")
}
