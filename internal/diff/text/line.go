package text

import (
	"bytes"
	"strings"
)

type LineDiff struct{}

func NewLineDiff() *LineDiff {
	return &LineDiff{}
}

func (h *LineDiff) Calculate(baseline []byte, target []byte) (*DiffResult, error) {
	return h.CalculateLines(h.splitLines(baseline), h.splitLines(target)), nil
}

// CalculateLines diffs two line lists; lines only in before are deletions and
// lines only in after are insertions.
func (h *LineDiff) CalculateLines(before []string, after []string) *DiffResult {
	lcs := h.calculateLCS(before, after)
	edits := h.backtrack(before, after, lcs)

	changed := 0
	var buffer bytes.Buffer
	for i, e := range edits {
		if e.Op != OpEqual {
			changed++
		}
		if i > 0 {
			buffer.WriteByte('\n')
		}
		buffer.WriteByte(byte(e.Op))
		buffer.WriteByte(' ')
		buffer.WriteString(e.Line)
	}

	diffAmount := 0.0
	if total := len(before) + len(after); total > 0 {
		diffAmount = min(float64(changed)/float64(total), 1.0)
	}

	return &DiffResult{
		Diff:       buffer.Bytes(),
		Edits:      edits,
		DiffAmount: diffAmount,
	}
}

func (h *LineDiff) splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	return strings.Split(string(data), "\n")
}

func (h *LineDiff) calculateLCS(before []string, after []string) [][]int {
	m, n := len(before), len(after)
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if before[i-1] == after[j-1] {
				lcs[i][j] = lcs[i-1][j-1] + 1
			} else {
				lcs[i][j] = max(lcs[i-1][j], lcs[i][j-1])
			}
		}
	}

	return lcs
}

func (h *LineDiff) backtrack(before []string, after []string, lcs [][]int) []Edit {
	i, j := len(before), len(after)
	edits := make([]Edit, 0, max(i, j))

	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && before[i-1] == after[j-1]:
			edits = append(edits, Edit{Op: OpEqual, Line: before[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			edits = append(edits, Edit{Op: OpInsert, Line: after[j-1]})
			j--
		default:
			edits = append(edits, Edit{Op: OpDelete, Line: before[i-1]})
			i--
		}
	}

	for l, r := 0, len(edits)-1; l < r; l, r = l+1, r-1 {
		edits[l], edits[r] = edits[r], edits[l]
	}
	return edits
}
