package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"typeinf/config"
	"typeinf/internal/adapter/model"
	"typeinf/internal/adapter/store"
	"typeinf/internal/usecase"
)

var (
	trainEpochs     int
	trainExpertRate float64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model with type-checker feedback",
	Long: `Run feedback-training epochs over the train split: each file is
rolled out label by label, type-checked after every assignment, and the
resulting batches are pushed through a replay buffer into the model.

Examples:
  typeinf train
  typeinf train --epochs 3 --expert-rate 0.5`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 1, "number of training epochs")
	trainCmd.Flags().Float64Var(&trainExpertRate, "expert-rate", -1, "probability of revealing ground truth (default from config)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	rootDir := GetRootDir()

	dbPath := config.DatasetDBPath(rootDir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no datasets found. Run 'typeinf dataset build' first")
	}
	st, err := store.NewDatasetStore(dbPath)
	if err != nil {
		return err
	}
	split, err := st.LoadReposSplit()
	st.Close()
	if err != nil {
		return fmt.Errorf("failed to load repos split: %w", err)
	}
	reposRoot, repos := splitRoot(split), split["train"]
	if reposRoot == "" {
		return fmt.Errorf("stored split has no repos root. Run 'typeinf dataset build' again")
	}
	if len(repos) == 0 {
		return fmt.Errorf("train split is empty")
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	ds, err := buildSplitSrcs(cmd.Context(), p, cfg, reposRoot, repos, nil)
	if err != nil {
		return err
	}
	srcs := ds.SrcsWithLabels()
	fmt.Printf("Training on %d files, %d labels\n", len(srcs), ds.NumLabels())

	backend := model.NewBaseline()
	serial := usecase.NewSerialQueue()
	defer serial.Close()
	cpu := usecase.NewCPUPool(cfg.Workers)
	rollout := usecase.NewRollout(usecase.RolloutEnv{
		ReposRoot:  reposRoot,
		SearchPath: cfg.Checker.SearchPath,
		Checker:    p.checker,
		Builder:    p.builder,
		Chunker:    p.chunker,
	}, backend, cpu, serial)

	expertRate := cfg.Train.ExpertRate
	if trainExpertRate >= 0 {
		expertRate = trainExpertRate
	}
	trainer := usecase.NewTrainer(backend, rollout, serial, usecase.TrainArgs{
		SaveDir:          filepath.Join(rootDir, cfg.Train.SaveDir),
		GradAccumSteps:   cfg.Train.GradAccumSteps,
		Concurrency:      cfg.Train.Concurrency,
		ReplayBufferSize: cfg.Train.ReplayBufferSize,
		SavesPerEpoch:    cfg.Train.SavesPerEpoch,
		ExpertRate:       expertRate,
	})

	for epoch := 0; epoch < trainEpochs; epoch++ {
		// One tick per produced batch plus one per trained batch.
		bar := newBar(2*ds.NumLabels(), fmt.Sprintf("Epoch %d", epoch+1))
		trainer.Progress = func(n int) { bar.Add(n) }

		start := time.Now()
		report, err := trainer.TrainEpoch(cmd.Context(), srcs)
		bar.Finish()
		if err != nil {
			return fmt.Errorf("epoch %d failed: %w", epoch+1, err)
		}
		fmt.Printf("Epoch %d: loss=%.4f acc=%.3f labels=%d batches=%d dropped=%d check_failures=%d (%s)\n",
			epoch+1, report.AvgLoss, report.TrainAcc, report.LabelsSeen,
			report.BatchesTrained, report.FilesDropped, report.CheckFailures,
			time.Since(start).Round(time.Second))
	}
	return nil
}

// splitRoot recovers the repos root recorded alongside the split.
func splitRoot(split map[string][]string) string {
	if roots := split["_root"]; len(roots) == 1 {
		return roots[0]
	}
	return ""
}
