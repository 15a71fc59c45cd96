package store

import (
	"path/filepath"
	"testing"

	"typeinf/internal/domain"
)

func testDataset() *domain.ChunkedDataset {
	return &domain.ChunkedDataset{
		Rows: []domain.ChunkRow{
			{ChunkID: 0, InputIDs: []int{1, 104, 105, 2}, Labels: []int{1, 103, 104, 2}, NLabels: 1},
			{ChunkID: 3, InputIDs: []int{1, 106, 107, 2}, Labels: []int{1, 103, 106, 2}, NLabels: 1},
		},
		Info: []domain.SrcChunkInfo{
			{
				Types:     []domain.Type{{Head: "int"}},
				SitesInfo: []domain.AnnotationSite{{Path: "F.param[0]", Category: domain.CatFuncParam}},
				SrcIDs:    []int{0},
			},
			{
				Types:     []domain.Type{{Head: "[]", Args: []domain.Type{{Head: "byte"}}}},
				SitesInfo: []domain.AnnotationSite{{Path: "G.ret[0]", Category: domain.CatFuncReturn}},
				SrcIDs:    []int{1},
			},
		},
		Files:      []string{"r/a.go", "r/b.go"},
		FileToSrc:  map[string]string{"r/a.go": "package a", "r/b.go": "package b"},
		FileToRepo: map[string]string{"r/a.go": "r", "r/b.go": "r"},
	}
}

func TestSaveLoadDataset(t *testing.T) {
	st, err := NewDatasetStore(filepath.Join(t.TempDir(), "datasets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	want := testDataset()
	if err := st.SaveDataset("train", want); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}

	got, err := st.LoadDataset("train")
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if got.Len() != want.Len() {
		t.Fatalf("loaded %d rows, want %d", got.Len(), want.Len())
	}
	for i := range want.Rows {
		if got.Rows[i].ChunkID != want.Rows[i].ChunkID {
			t.Errorf("row %d chunk id %d, want %d", i, got.Rows[i].ChunkID, want.Rows[i].ChunkID)
		}
		if len(got.Rows[i].InputIDs) != len(want.Rows[i].InputIDs) {
			t.Errorf("row %d input length mismatch", i)
		}
		if !got.Info[i].Types[0].Equal(want.Info[i].Types[0]) {
			t.Errorf("row %d type mismatch", i)
		}
		if got.Info[i].SitesInfo[0].Path != want.Info[i].SitesInfo[0].Path {
			t.Errorf("row %d site path mismatch", i)
		}
	}
	if got.FileToSrc["r/b.go"] != "package b" {
		t.Error("file source text not preserved")
	}
	if got.FileToRepo["r/a.go"] != "r" {
		t.Error("file repo mapping not preserved")
	}
}

func TestSaveDataset_Replaces(t *testing.T) {
	st, err := NewDatasetStore(filepath.Join(t.TempDir(), "datasets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if err := st.SaveDataset("train", testDataset()); err != nil {
		t.Fatal(err)
	}
	small := testDataset()
	small.Rows = small.Rows[:1]
	small.Info = small.Info[:1]
	small.Files = small.Files[:1]
	if err := st.SaveDataset("train", small); err != nil {
		t.Fatal(err)
	}

	got, err := st.LoadDataset("train")
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 {
		t.Errorf("re-saved dataset has %d rows, want 1", got.Len())
	}
	if len(got.Files) != 1 {
		t.Errorf("re-saved dataset has %d files, want 1", len(got.Files))
	}
}

func TestLoadDataset_Missing(t *testing.T) {
	st, err := NewDatasetStore(filepath.Join(t.TempDir(), "datasets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.LoadDataset("nope"); err == nil {
		t.Error("expected an error for a missing dataset")
	}
}

func TestReposSplitRoundTrip(t *testing.T) {
	st, err := NewDatasetStore(filepath.Join(t.TempDir(), "datasets.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, err := st.LoadReposSplit(); err == nil {
		t.Error("expected an error before a split is saved")
	}

	want := map[string][]string{
		"train": {"r1", "r2"},
		"valid": {"r3"},
		"test":  {"r4"},
	}
	if err := st.SaveReposSplit(want); err != nil {
		t.Fatal(err)
	}
	got, err := st.LoadReposSplit()
	if err != nil {
		t.Fatal(err)
	}
	if len(got["train"]) != 2 || got["valid"][0] != "r3" || got["test"][0] != "r4" {
		t.Errorf("split round trip mismatch: %v", got)
	}
}
