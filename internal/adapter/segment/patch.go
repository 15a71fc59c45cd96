package segment

import (
	"fmt"
	"sort"
	"strings"

	"typeinf/internal/domain"
)

// Patch priorities. When ranges coincide the lower priority is applied
// first, so a re-masked prediction site is emitted before the comment
// carrying its previous value, which in turn precedes any diagnostic
// comment at the same position.
const (
	PrioMask       = 1
	PrioPrediction = 2
	PrioDiagnostic = 3
)

// Patch is a positional text edit: the text in [StartOff, EndOff) is
// replaced by Text. StartOff == EndOff inserts.
type Patch struct {
	StartOff int
	EndOff   int
	Priority int
	Text     string
}

// Apply performs all patches in (offset, priority) order. Inserts whose
// position was already consumed by an equal-offset replacement are
// emitted immediately after it. Overlapping range replacements are a
// caller bug.
func Apply(code string, patches []Patch) (string, error) {
	ps := make([]Patch, len(patches))
	copy(ps, patches)
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].StartOff != ps[j].StartOff {
			return ps[i].StartOff < ps[j].StartOff
		}
		return ps[i].Priority < ps[j].Priority
	})

	var b strings.Builder
	cursor := 0
	for _, p := range ps {
		if p.StartOff < 0 || p.EndOff > len(code) || p.EndOff < p.StartOff {
			return "", fmt.Errorf("patch range [%d,%d) out of bounds", p.StartOff, p.EndOff)
		}
		if p.StartOff < cursor {
			if p.StartOff != p.EndOff {
				return "", fmt.Errorf("overlapping patch at offset %d", p.StartOff)
			}
			b.WriteString(p.Text)
			continue
		}
		b.WriteString(code[cursor:p.StartOff])
		b.WriteString(p.Text)
		cursor = p.EndOff
	}
	b.WriteString(code[cursor:])
	return b.String(), nil
}

// OffsetOf converts a line/column position (1-based line, 0-based
// column) to a byte offset in code. Positions past the end of a line or
// the file clamp to the nearest valid offset.
func OffsetOf(code string, pos domain.Position) int {
	line := 1
	start := 0
	for line < pos.Line {
		i := strings.IndexByte(code[start:], '\n')
		if i < 0 {
			return len(code)
		}
		start += i + 1
		line++
	}
	off := start + pos.Column
	if end := lineEnd(code, start); off > end {
		off = end
	}
	return off
}

func lineEnd(code string, lineStart int) int {
	if i := strings.IndexByte(code[lineStart:], '\n'); i >= 0 {
		return lineStart + i
	}
	return len(code)
}
