package port

import (
	"context"

	"typeinf/internal/domain"
)

// Predictor produces ranked type candidates for a batch.
type Predictor interface {
	PredictOnBatch(ctx context.Context, batch domain.Batch) ([]domain.Candidate, error)
}

// TrainableModel is the optimizer-facing side of the model collaborator.
// All methods must be called from a single execution context; the
// training loop guarantees this via its serial model queue.
type TrainableModel interface {
	Predictor

	// TrainOnBatch runs one forward/backward pass, scaling the loss by
	// 1/accumSteps, and returns the unscaled loss.
	TrainOnBatch(batch domain.Batch, accumSteps int) (loss float64, err error)

	// ClipAndStep clips gradients, applies a parameter update and
	// clears accumulated gradients.
	ClipAndStep() error

	// SaveCheckpoint persists the current parameters under dir.
	SaveCheckpoint(dir string) error
}
