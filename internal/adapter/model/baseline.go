package model

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"typeinf/internal/domain"
)

// Baseline is a trivial model backend that predicts the Any sentinel for
// every label and trains as a no-op. It lets the full pipeline (chunking,
// rollouts, checker feedback, replay buffer) run end to end without a
// neural backend attached.
type Baseline struct {
	mu      sync.Mutex
	batches int
}

func NewBaseline() *Baseline { return &Baseline{} }

func (b *Baseline) PredictOnBatch(_ context.Context, batch domain.Batch) ([]domain.Candidate, error) {
	types := make([]domain.Type, batch.NLabels)
	for i := range types {
		types[i] = domain.AnyType
	}
	return []domain.Candidate{{Types: types, Score: 0}}, nil
}

func (b *Baseline) TrainOnBatch(_ domain.Batch, _ int) (float64, error) {
	b.mu.Lock()
	b.batches++
	b.mu.Unlock()
	return 0, nil
}

func (b *Baseline) ClipAndStep() error { return nil }

func (b *Baseline) SaveCheckpoint(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := json.Marshal(map[string]int{"batches_seen": b.batches})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "baseline.json"), data, 0o644)
}
