package usecase

import (
	"context"
	"errors"
	"sync"

	"typeinf/internal/domain"
)

// EvalArgs configures a pure-prediction pass over a dataset.
type EvalArgs struct {
	Concurrency int
}

// EvalReport carries the scored outcome of an evaluation epoch together
// with the per-file prediction lists, in src order.
type EvalReport struct {
	Accs          Accuracies
	Preds         [][]domain.Type
	Srcs          []*domain.TokenizedSrc
	FilesDropped  int
	CheckFailures int
}

// Evaluator runs rollouts at expert rate zero, so every label is
// predicted by the model, and scores the final assignments.
type Evaluator struct {
	rollout *Rollout

	Progress func(n int)
}

func NewEvaluator(rollout *Rollout) *Evaluator {
	return &Evaluator{rollout: rollout}
}

// EvalDataset rolls out every source and scores predictions against the
// ground truth. Sources that fail to parse or re-tokenize are dropped
// and counted.
func (e *Evaluator) EvalDataset(ctx context.Context, srcs []*domain.TokenizedSrc, args EvalArgs) (*EvalReport, error) {
	if args.Concurrency < 1 {
		args.Concurrency = 1
	}

	report := &EvalReport{}
	results := make([]*domain.RolloutResult, len(srcs))
	errs := make([]error, len(srcs))

	gate := NewGate(args.Concurrency)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, src := range srcs {
		if err := gate.Enter(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, src *domain.TokenizedSrc) {
			defer wg.Done()
			defer gate.Leave()
			var cb func(domain.Batch)
			if e.Progress != nil {
				cb = func(domain.Batch) { e.Progress(1) }
			}
			results[i], errs[i] = e.rollout.Run(ctx, src, cb, 0)
		}(i, src)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scoredSrcs []*domain.TokenizedSrc
	var preds [][]domain.Type
	for i, src := range srcs {
		if errs[i] != nil {
			var fe *domain.FormatError
			var pe *domain.ParseError
			if errors.As(errs[i], &fe) || errors.As(errs[i], &pe) {
				report.FilesDropped++
				continue
			}
			return nil, errs[i]
		}
		r := results[i]
		report.CheckFailures += r.CheckFailures
		filePreds := make([]domain.Type, len(src.Types))
		for t := range src.Types {
			filePreds[t] = r.Assignment[t]
		}
		scoredSrcs = append(scoredSrcs, src)
		preds = append(preds, filePreds)
	}

	report.Srcs = scoredSrcs
	report.Preds = preds
	report.Accs = PredsToAccuracies(preds, scoredSrcs)
	return report, nil
}
