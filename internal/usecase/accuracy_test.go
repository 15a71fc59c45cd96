package usecase

import (
	"math"
	"testing"

	"typeinf/internal/domain"
)

func TestTypeAccuracies(t *testing.T) {
	labels := []domain.Type{
		{Head: "int"},
		{Head: "[]", Args: []domain.Type{{Head: "string"}}},
		{Head: "pkg.Buffer"},
		{Head: "any"},
	}
	preds := []domain.Type{
		{Head: "int"},                                  // exact
		{Head: "[]", Args: []domain.Type{{Head: "byte"}}}, // head only
		{Head: "Buffer"},                               // exact after normalization
		{Head: "string"},                               // wrong
	}
	cats := []domain.AnnotCat{
		domain.CatFuncParam, domain.CatFuncParam,
		domain.CatFuncReturn, domain.CatVarDecl,
	}

	acc := TypeAccuracies(preds, labels, cats, true)
	if acc.NLabels != 4 {
		t.Fatalf("NLabels = %d, want 4", acc.NLabels)
	}
	if acc.FullAcc != 0.5 {
		t.Errorf("FullAcc = %v, want 0.5", acc.FullAcc)
	}
	if acc.PartialAcc != 0.75 {
		t.Errorf("PartialAcc = %v, want 0.75", acc.PartialAcc)
	}
	// The any label is excluded from the no-any partial figure: 3 of 3.
	if acc.PartialAccNoAny != 1.0 {
		t.Errorf("PartialAccNoAny = %v, want 1.0", acc.PartialAccNoAny)
	}
	if acc.FullByCat["param"] != 0.5 {
		t.Errorf("FullByCat[param] = %v, want 0.5", acc.FullByCat["param"])
	}
	if acc.FullByCat["return"] != 1.0 {
		t.Errorf("FullByCat[return] = %v, want 1.0", acc.FullByCat["return"])
	}
	if acc.FullByCat["var"] != 0 {
		t.Errorf("FullByCat[var] = %v, want 0", acc.FullByCat["var"])
	}
}

func TestTypeAccuracies_Empty(t *testing.T) {
	acc := TypeAccuracies(nil, nil, nil, true)
	if acc.NLabels != 0 {
		t.Errorf("NLabels = %d, want 0", acc.NLabels)
	}
	if !math.IsNaN(acc.FullAcc) {
		t.Errorf("FullAcc on empty input must be NaN, got %v", acc.FullAcc)
	}
}

func TestPredsToAccuracies(t *testing.T) {
	srcs := []*domain.TokenizedSrc{
		{
			File:      "a.go",
			Types:     []domain.Type{{Head: "int"}},
			TypesInfo: []domain.AnnotationSite{{Category: domain.CatFuncParam}},
		},
		{
			File:      "b.go",
			Types:     []domain.Type{{Head: "string"}},
			TypesInfo: []domain.AnnotationSite{{Category: domain.CatFuncReturn}},
		},
	}
	preds := [][]domain.Type{
		{{Head: "int"}},
		{{Head: "int"}},
	}
	acc := PredsToAccuracies(preds, srcs)
	if acc.NLabels != 2 {
		t.Fatalf("NLabels = %d, want 2", acc.NLabels)
	}
	if acc.FullAcc != 0.5 {
		t.Errorf("FullAcc = %v, want 0.5", acc.FullAcc)
	}
}

func TestRunningAvg(t *testing.T) {
	a := NewRunningAvg(0.5)
	a.Update(10)
	if a.Value() != 10 {
		t.Errorf("first update must set the value directly, got %v", a.Value())
	}
	a.Update(0)
	if a.Value() != 5 {
		t.Errorf("Value = %v, want 5", a.Value())
	}
	if a.Count() != 2 {
		t.Errorf("Count = %d, want 2", a.Count())
	}
}
