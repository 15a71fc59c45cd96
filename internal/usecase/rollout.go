package usecase

import (
	"context"
	"math/rand"
	"path/filepath"

	"typeinf/internal/adapter/chunker"
	"typeinf/internal/adapter/encode"
	"typeinf/internal/domain"
	"typeinf/internal/port"
)

// RolloutEnv bundles the collaborators a rollout needs.
type RolloutEnv struct {
	ReposRoot  string
	SearchPath string
	Checker    port.TypeChecker
	Builder    *encode.Builder
	Chunker    *chunker.Chunker
}

// Rollout drives the sequential per-file prediction loop: predict or
// reveal the next type, type-check the file with the assignment so far,
// and re-tokenize it with the diagnostics inlined as feedback.
type Rollout struct {
	env       RolloutEnv
	predictor port.Predictor
	cpu       *CPUPool
	model     *SerialQueue
}

func NewRollout(env RolloutEnv, predictor port.Predictor, cpu *CPUPool, model *SerialQueue) *Rollout {
	return &Rollout{env: env, predictor: predictor, cpu: cpu, model: model}
}

// Run processes every label of src in source order. With probability
// expertRate a label's ground truth is revealed instead of predicted;
// at expertRate 1 the model is never invoked. The callback, when set,
// receives each batch and runs concurrently with the type-check step; it
// is awaited before the next label starts.
func (r *Rollout) Run(ctx context.Context, src *domain.TokenizedSrc, cb func(domain.Batch), expertRate float64) (*domain.RolloutResult, error) {
	result := domain.NewRolloutResult()
	cur := src

	for t := range src.Types {
		useExpert := expertRate >= 1 || (expertRate > 0 && rand.Float64() < expertRate)
		result.UsedExpert = append(result.UsedExpert, useExpert)

		var batch domain.Batch
		err := r.cpu.Do(ctx, func() error {
			b, _, err := r.env.Chunker.SingleLabelChunk(cur, t)
			batch = b
			return err
		})
		if err != nil {
			return nil, err
		}
		result.BatchSeq = append(result.BatchSeq, batch)

		if useExpert {
			result.Assignment[t] = src.Types[t]
		} else {
			var cands []domain.Candidate
			err := r.model.Do(ctx, func() error {
				var err error
				cands, err = r.predictor.PredictOnBatch(ctx, batch)
				return err
			})
			if err != nil {
				return nil, err
			}
			result.Assignment[t] = topPrediction(cands)
		}

		var cbDone chan struct{}
		if cb != nil {
			cbDone = make(chan struct{})
			go func(b domain.Batch) {
				defer close(cbDone)
				cb(b)
			}(batch)
		}

		// The checker always sees the original file with the full
		// current assignment applied; remaining sites keep their
		// original annotations.
		var code string
		var diags map[domain.Position]string
		err = r.cpu.Do(ctx, func() error {
			var err error
			code, err = ApplyAssignment(src, result.Assignment)
			if err != nil {
				return err
			}
			absFile := filepath.Join(r.env.ReposRoot, src.File)
			repoDir := filepath.Join(r.env.ReposRoot, src.Repo)
			var fail *domain.CheckFailure
			diags, fail, err = r.env.Checker.Check(ctx, code, absFile, repoDir, r.env.SearchPath)
			if fail != nil {
				result.CheckFailures++
				diags = nil
			}
			return err
		})
		if err != nil {
			return nil, err
		}

		err = r.cpu.Do(ctx, func() error {
			next, err := r.env.Builder.FromFeedback(src, code, diags, copyAssignment(result.Assignment))
			if err != nil {
				return err
			}
			cur = next
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.SrcSeq = append(result.SrcSeq, cur)

		if cbDone != nil {
			<-cbDone
		}
	}
	return result, nil
}

// topPrediction extracts the highest-ranked single-label prediction,
// falling back to the Any sentinel on empty output.
func topPrediction(cands []domain.Candidate) domain.Type {
	if len(cands) == 0 || len(cands[0].Types) == 0 {
		return domain.AnyType
	}
	return cands[0].Types[0]
}
