package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"

	"typeinf/internal/domain"
	"typeinf/internal/port"
)

// TrainArgs configures one training epoch of the feedback-driven loop.
type TrainArgs struct {
	SaveDir          string
	GradAccumSteps   int
	Concurrency      int
	ReplayBufferSize int
	SavesPerEpoch    int
	ExpertRate       float64
}

// TrainReport summarizes an epoch.
type TrainReport struct {
	LabelsSeen     int
	BatchesTrained int
	FilesDropped   int
	CheckFailures  int
	AvgLoss        float64
	TrainAcc       float64
}

// Trainer fans rollouts out over many files with bounded concurrency and
// trains the model from a replay buffer. All buffer and model mutation
// happens on the rollout's serial model queue; only the metrics callback
// needs a lock, since rollout callbacks fire concurrently.
type Trainer struct {
	model   port.TrainableModel
	rollout *Rollout
	serial  *SerialQueue
	args    TrainArgs

	// LogFn, when set, receives running metrics keyed by name. Guarded
	// internally.
	LogFn func(step int, metrics map[string]float64)
	// Progress, when set, is called once per produced batch and once
	// per trained batch.
	Progress func(n int)
}

func NewTrainer(model port.TrainableModel, rollout *Rollout, serial *SerialQueue, args TrainArgs) *Trainer {
	if args.GradAccumSteps < 1 {
		args.GradAccumSteps = 1
	}
	if args.Concurrency < 1 {
		args.Concurrency = 1
	}
	if args.ReplayBufferSize < 1 {
		args.ReplayBufferSize = 1
	}
	if args.SavesPerEpoch < 1 {
		args.SavesPerEpoch = 1
	}
	return &Trainer{model: model, rollout: rollout, serial: serial, args: args}
}

// trainState is mutated exclusively from the serial model queue.
type trainState struct {
	buffer      []domain.Batch // index 0 is oldest
	gradCounter int
	saveCounter int
	saveEvery   int
	trained     int
	avgLoss     *RunningAvg
}

// TrainEpoch runs one pass over srcs in shuffled order. Sources whose
// rollout hits a parse or format error are dropped and counted; any
// integrity violation aborts the epoch.
func (t *Trainer) TrainEpoch(ctx context.Context, srcs []*domain.TokenizedSrc) (*TrainReport, error) {
	shuffled := make([]*domain.TokenizedSrc, len(srcs))
	copy(shuffled, srcs)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nLabels := 0
	for _, s := range shuffled {
		nLabels += s.NumLabels()
	}
	saveEvery := nLabels / t.args.SavesPerEpoch
	if saveEvery < 1 {
		saveEvery = 1
	}
	alpha := 2 / float64(1+nLabels)
	state := &trainState{
		saveEvery: saveEvery,
		avgLoss:   NewRunningAvg(alpha),
	}
	trainAcc := NewRunningAvg(alpha)

	report := &TrainReport{}
	gate := NewGate(t.args.Concurrency)
	var logMu sync.Mutex
	labelsCounter := 0

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var fatalMu sync.Mutex
	var fatal error
	abort := func(err error) {
		fatalMu.Lock()
		if fatal == nil {
			fatal = err
			cancel()
		}
		fatalMu.Unlock()
	}

	for _, src := range shuffled {
		if err := gate.Enter(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func(src *domain.TokenizedSrc) {
			defer wg.Done()
			defer gate.Leave()

			r, err := t.rollout.Run(ctx, src, func(domain.Batch) {
				if t.Progress != nil {
					t.Progress(1)
				}
			}, t.args.ExpertRate)
			if err != nil {
				var fe *domain.FormatError
				var pe *domain.ParseError
				if errors.As(err, &fe) || errors.As(err, &pe) {
					logMu.Lock()
					report.FilesDropped++
					logMu.Unlock()
					return
				}
				if ctx.Err() == nil {
					abort(err)
				}
				return
			}

			logMu.Lock()
			report.CheckFailures += r.CheckFailures
			for i := range src.Types {
				if r.UsedExpert[i] {
					continue
				}
				pred := r.Assignment[i].Normalized()
				label := src.Types[i].Normalized()
				if pred.Equal(label) {
					trainAcc.Update(1)
				} else {
					trainAcc.Update(0)
				}
			}
			labelsCounter += src.NumLabels()
			step := labelsCounter
			acc := trainAcc.Value()
			logMu.Unlock()
			t.log(&logMu, step, map[string]float64{"train/acc": acc})

			for _, batch := range r.BatchSeq {
				batch := batch
				if err := t.serial.Do(ctx, func() error {
					return t.processBatch(batch, state, &logMu)
				}); err != nil && ctx.Err() == nil {
					abort(err)
					return
				}
			}
		}(src)
	}
	wg.Wait()
	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Drain whatever is left in the buffer, then flush any pending
	// gradient.
	if err := t.serial.Do(context.Background(), func() error {
		return t.emptyBuffer(state, &logMu)
	}); err != nil {
		return nil, err
	}

	report.LabelsSeen = labelsCounter
	report.BatchesTrained = state.trained
	report.AvgLoss = state.avgLoss.Value()
	report.TrainAcc = trainAcc.Value()
	return report, nil
}

// processBatch pushes a batch onto the replay buffer and, when the
// buffer spills over capacity, trains on the evicted oldest batch.
// Serial-queue context only.
func (t *Trainer) processBatch(batch domain.Batch, state *trainState, logMu *sync.Mutex) error {
	state.buffer = append(state.buffer, batch)
	if len(state.buffer) > t.args.ReplayBufferSize {
		if len(state.buffer) != t.args.ReplayBufferSize+1 {
			return &domain.IntegrityError{Msg: fmt.Sprintf(
				"replay buffer grew to %d, capacity %d", len(state.buffer), t.args.ReplayBufferSize)}
		}
		oldest := state.buffer[0]
		state.buffer = state.buffer[1:]
		return t.trainOnBatch(oldest, state, logMu)
	}
	return nil
}

// emptyBuffer trains on everything left in the buffer. Serial-queue
// context only.
func (t *Trainer) emptyBuffer(state *trainState, logMu *sync.Mutex) error {
	for len(state.buffer) > 0 {
		oldest := state.buffer[0]
		state.buffer = state.buffer[1:]
		if err := t.trainOnBatch(oldest, state, logMu); err != nil {
			return err
		}
	}
	if state.gradCounter > 0 {
		return t.updateModel(state, logMu)
	}
	return nil
}

func (t *Trainer) trainOnBatch(batch domain.Batch, state *trainState, logMu *sync.Mutex) error {
	loss, err := t.model.TrainOnBatch(batch, t.args.GradAccumSteps)
	if err != nil {
		return err
	}
	state.avgLoss.Update(loss)
	state.trained++
	state.gradCounter++
	if t.Progress != nil {
		t.Progress(1)
	}
	if state.gradCounter >= t.args.GradAccumSteps {
		return t.updateModel(state, logMu)
	}
	return nil
}

func (t *Trainer) updateModel(state *trainState, logMu *sync.Mutex) error {
	if err := t.model.ClipAndStep(); err != nil {
		return err
	}

	step := state.avgLoss.Count()
	t.log(logMu, step, map[string]float64{
		"train/loss":          state.avgLoss.Value(),
		"train/replay_buffer": float64(len(state.buffer)),
	})

	state.saveCounter += state.gradCounter
	state.gradCounter = 0
	if state.saveCounter >= state.saveEvery {
		dir := filepath.Join(t.args.SaveDir, fmt.Sprintf("step=%d", step))
		if err := t.model.SaveCheckpoint(dir); err != nil {
			return err
		}
		state.saveCounter -= state.saveEvery
	}
	return nil
}

func (t *Trainer) log(mu *sync.Mutex, step int, metrics map[string]float64) {
	if t.LogFn == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	t.LogFn(step, metrics)
}
