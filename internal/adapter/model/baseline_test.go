package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"typeinf/internal/domain"
)

func TestBaselinePredict(t *testing.T) {
	b := NewBaseline()
	cands, err := b.PredictOnBatch(context.Background(), domain.Batch{NLabels: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || len(cands[0].Types) != 3 {
		t.Fatalf("got %d candidates", len(cands))
	}
	for _, ty := range cands[0].Types {
		if !ty.Equal(domain.AnyType) {
			t.Errorf("baseline must predict any, got %s", ty)
		}
	}
}

func TestBaselineCheckpoint(t *testing.T) {
	b := NewBaseline()
	if _, err := b.TrainOnBatch(domain.Batch{NLabels: 1}, 1); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "step=1")
	if err := b.SaveCheckpoint(dir); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "baseline.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"batches_seen":1}` {
		t.Errorf("checkpoint content %s", data)
	}
}
