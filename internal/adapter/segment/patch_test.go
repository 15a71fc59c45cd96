package segment

import (
	"testing"

	"typeinf/internal/domain"
)

func TestApply_Replace(t *testing.T) {
	code := "func F(a int) {}"
	out, err := Apply(code, []Patch{
		{StartOff: 9, EndOff: 12, Priority: PrioMask, Text: TypeMask},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out != "func F(a __T__) {}" {
		t.Errorf("got %q", out)
	}
}

func TestApply_PriorityOrderAtSameOffset(t *testing.T) {
	code := "x int y"
	out, err := Apply(code, []Patch{
		{StartOff: 2, EndOff: 2, Priority: PrioDiagnostic, Text: "<D>"},
		{StartOff: 2, EndOff: 5, Priority: PrioMask, Text: TypeMask},
		{StartOff: 2, EndOff: 2, Priority: PrioPrediction, Text: "<P>"},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	// Mask replaces first, then the prediction comment, then the
	// diagnostic, all anchored at the same offset.
	if out != "x __T__<P><D> y" {
		t.Errorf("got %q", out)
	}
}

func TestApply_OverlappingReplacementsRejected(t *testing.T) {
	code := "abcdef"
	_, err := Apply(code, []Patch{
		{StartOff: 0, EndOff: 4, Priority: PrioMask, Text: "x"},
		{StartOff: 2, EndOff: 5, Priority: PrioMask, Text: "y"},
	})
	if err == nil {
		t.Error("overlapping replacements must be rejected")
	}
}

func TestApply_OutOfBounds(t *testing.T) {
	if _, err := Apply("ab", []Patch{{StartOff: 1, EndOff: 5, Text: "x"}}); err == nil {
		t.Error("out-of-bounds patch must be rejected")
	}
	if _, err := Apply("ab", []Patch{{StartOff: -1, EndOff: 0, Text: "x"}}); err == nil {
		t.Error("negative offset must be rejected")
	}
}

func TestOffsetOf(t *testing.T) {
	code := "ab\ncdef\ng"
	cases := []struct {
		pos  domain.Position
		want int
	}{
		{domain.Position{Line: 1, Column: 0}, 0},
		{domain.Position{Line: 2, Column: 1}, 4},
		{domain.Position{Line: 2, Column: 99}, 7}, // clamps to end of line
		{domain.Position{Line: 3, Column: 0}, 8},
		{domain.Position{Line: 9, Column: 0}, len(code)}, // past last line
	}
	for _, c := range cases {
		if got := OffsetOf(code, c.pos); got != c.want {
			t.Errorf("OffsetOf(%v) = %d, want %d", c.pos, got, c.want)
		}
	}
}
