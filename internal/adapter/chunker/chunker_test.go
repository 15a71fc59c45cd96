package chunker

import (
	"errors"
	"testing"

	"typeinf/internal/adapter/encode"
	"typeinf/internal/adapter/segment"
	"typeinf/internal/adapter/vocab"
	"typeinf/internal/domain"
)

func buildSrc(t *testing.T, v *vocab.Vocab, file, code string) *domain.TokenizedSrc {
	t.Helper()
	s := &segment.Segmenter{}
	m, err := s.Mask(file, "repo", code)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	src, err := encode.NewBuilder(v).FromMasked(m)
	if err != nil {
		t.Fatalf("FromMasked failed: %v", err)
	}
	return src
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	v := vocab.New()
	if _, err := New(v, domain.CtxArgs{CtxSize: 8, LeftMargin: 4, RightMargin: 4}, 1); err == nil {
		t.Error("empty window must be rejected")
	}
	if _, err := New(v, domain.CtxArgs{CtxSize: 300, LeftMargin: 10, RightMargin: 10}, 1); err == nil {
		t.Error("window wider than the marker budget must be rejected")
	}
}

func TestChunk_Invariants(t *testing.T) {
	v := vocab.New()
	src := buildSrc(t, v, "a.go", `package a

func Add(a int, b int) int {
	return a + b
}

func Mul(a int, b int) int {
	return a * b
}
`)

	ctx := domain.CtxArgs{CtxSize: 48, LeftMargin: 8, RightMargin: 8, TypesInCtx: true}
	c, err := New(v, ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := c.Chunk([]*domain.TokenizedSrc{src})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if ds.Len() == 0 {
		t.Fatal("expected at least one chunk")
	}

	totalLabels := 0
	for i, row := range ds.Rows {
		if len(row.InputIDs) != ctx.CtxSize {
			t.Errorf("chunk %d input width %d, want %d", i, len(row.InputIDs), ctx.CtxSize)
		}
		info := ds.Info[i]
		if row.NLabels != len(info.Types) {
			t.Errorf("chunk %d label count disagrees with info", i)
		}
		totalLabels += row.NLabels

		if row.Labels[0] != v.BOS() {
			t.Errorf("chunk %d labels must start with BOS", i)
		}
		if row.Labels[len(row.Labels)-1] != v.EOS() {
			t.Errorf("chunk %d labels must end with EOS", i)
		}
		// The j-th label's marker is slot 99-j, in both input and labels.
		seen := 0
		for _, id := range row.InputIDs {
			if slot, ok := v.MarkerSlot(id); ok {
				if slot != domain.MarkerBudget-1-seen {
					t.Errorf("chunk %d: marker slot %d out of order", i, slot)
				}
				seen++
			}
		}
		if seen != row.NLabels {
			t.Errorf("chunk %d: %d markers in input for %d labels", i, seen, row.NLabels)
		}
	}
	if totalLabels != src.NumLabels() {
		t.Errorf("chunks carry %d labels, source has %d", totalLabels, src.NumLabels())
	}

	if err := VerifyLabels(ds, []*domain.TokenizedSrc{src}); err != nil {
		t.Errorf("VerifyLabels failed: %v", err)
	}
}

func TestChunk_SmallGeometry(t *testing.T) {
	v := vocab.New()
	word := func(s string) int { return v.Encode(s)[0] }

	// Hand-built stream: two labels inside the first central window
	// (positions 4..11 with ctx 16 and margins 4/4).
	tks := []int{
		v.BOS(), word("a"), word("b"), word("c"),
		word("d"), v.Mask(), word("e"), word("f"),
		word("g"), v.Mask(), word("h"), word("i"),
		word("j"), v.EOS(),
	}
	intTks := v.Encode("int")
	strTks := v.Encode("string")
	src := &domain.TokenizedSrc{
		File:     "s.go",
		Repo:     "r",
		Types:    []domain.Type{{Head: "int"}, {Head: "string"}},
		TypesPos: []int{5, 9},
		TypesStr: []string{"int", "string"},
		TypesTks: [][]int{intTks, strTks},
		TypesInfo: []domain.AnnotationSite{
			{Path: "F.param[0]"}, {Path: "F.ret[0]"},
		},
		TokenizedCode: tks,
	}

	c, err := New(v, domain.CtxArgs{CtxSize: 16, LeftMargin: 4, RightMargin: 4, TypesInCtx: true}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := c.Chunk([]*domain.TokenizedSrc{src})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("got %d chunks, want 1 (second window has no labels)", ds.Len())
	}

	row := ds.Rows[0]
	if row.NLabels != 2 {
		t.Fatalf("NLabels = %d, want 2", row.NLabels)
	}
	if len(row.InputIDs) != 16 {
		t.Fatalf("input width %d, want 16", len(row.InputIDs))
	}
	// Left margin is the stream head, masks become markers 99 and 98,
	// and the tail pads out the right margin.
	if row.InputIDs[0] != v.BOS() || row.InputIDs[3] != word("c") {
		t.Error("left margin must carry the stream head")
	}
	if row.InputIDs[5] != v.MarkerID(99) || row.InputIDs[9] != v.MarkerID(98) {
		t.Errorf("markers misplaced: %v", row.InputIDs)
	}

	wantLabels := []int{v.BOS(), v.MarkerID(99)}
	wantLabels = append(wantLabels, intTks...)
	wantLabels = append(wantLabels, v.MarkerID(98))
	wantLabels = append(wantLabels, strTks...)
	wantLabels = append(wantLabels, v.EOS())
	if len(row.Labels) != len(wantLabels) {
		t.Fatalf("labels length %d, want %d", len(row.Labels), len(wantLabels))
	}
	for i := range wantLabels {
		if row.Labels[i] != wantLabels[i] {
			t.Fatalf("labels[%d] = %d, want %d", i, row.Labels[i], wantLabels[i])
		}
	}
}

func TestChunk_ChunkIDsStableUnderSubset(t *testing.T) {
	v := vocab.New()
	src := buildSrc(t, v, "a.go", `package a

func A(x int) int { return x }

func B(y string) string { return y }

func C(z float64) float64 { return z }
`)

	c, err := New(v, domain.CtxArgs{CtxSize: 24, LeftMargin: 4, RightMargin: 4, TypesInCtx: true}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := c.Chunk([]*domain.TokenizedSrc{src})
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() < 2 {
		t.Skipf("need at least 2 chunks, got %d", ds.Len())
	}

	want := ds.Rows[1].ChunkID
	sub, err := ds.Subset([]int{want})
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if sub.Len() != 1 || sub.Rows[0].ChunkID != want {
		t.Errorf("subset did not preserve chunk id %d", want)
	}
}

func TestVerifyLabels_DetectsMismatch(t *testing.T) {
	v := vocab.New()
	src := buildSrc(t, v, "a.go", "package a\n\nfunc F(n int) int { return n }\n")
	c, err := New(v, domain.CtxArgs{CtxSize: 32, LeftMargin: 4, RightMargin: 4, TypesInCtx: true}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := c.Chunk([]*domain.TokenizedSrc{src})
	if err != nil {
		t.Fatal(err)
	}

	ds.Info[0].Types[0] = domain.Type{Head: "string"}
	err = VerifyLabels(ds, []*domain.TokenizedSrc{src})
	if err == nil {
		t.Fatal("expected a type mismatch error")
	}
	var ie *domain.IntegrityError
	if !errors.As(err, &ie) {
		t.Errorf("expected *domain.IntegrityError, got %T", err)
	}
}
