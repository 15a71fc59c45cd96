package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"typeinf/config"
	"typeinf/internal/adapter/model"
	"typeinf/internal/adapter/store"
	"typeinf/internal/usecase"
)

var (
	evalSplit string
	evalJSON  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score model predictions on a held-out split",
	Long: `Roll out every file of the chosen split with the model predicting
each label, then report exact and head-only accuracy broken down by
annotation category.

Examples:
  typeinf eval
  typeinf eval --split valid --json`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalSplit, "split", "test", "split to evaluate (train, valid or test)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output as JSON")
}

func runEval(cmd *cobra.Command, args []string) error {
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
	reposRoot, repos := splitRoot(split), split[evalSplit]
	if reposRoot == "" {
		return fmt.Errorf("stored split has no repos root. Run 'typeinf dataset build' again")
	}
	if len(repos) == 0 {
		return fmt.Errorf("split %q is empty", evalSplit)
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

	ev := usecase.NewEvaluator(rollout)
	bar := newBar(ds.NumLabels(), "Evaluating")
	ev.Progress = func(n int) { bar.Add(n) }

	report, err := ev.EvalDataset(cmd.Context(), srcs, usecase.EvalArgs{Concurrency: cfg.Train.Concurrency})
	bar.Finish()
	if err != nil {
		return err
	}

	if evalJSON {
		out := map[string]any{
			"split":          evalSplit,
			"full_acc":       report.Accs.FullAcc,
			"partial_acc":    report.Accs.PartialAcc,
			"partial_no_any": report.Accs.PartialAccNoAny,
			"full_by_cat":    report.Accs.FullByCat,
			"partial_by_cat": report.Accs.PartialByCat,
			"n_labels":       report.Accs.NLabels,
			"files_dropped":  report.FilesDropped,
			"check_failures": report.CheckFailures,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Split %s: %d labels across %d files\n", evalSplit, report.Accs.NLabels, len(report.Srcs))
	fmt.Printf("  full accuracy:            %.3f\n", report.Accs.FullAcc)
	fmt.Printf("  partial accuracy:         %.3f\n", report.Accs.PartialAcc)
	fmt.Printf("  partial accuracy (no any): %.3f\n", report.Accs.PartialAccNoAny)
	for cat, acc := range report.Accs.FullByCat {
		fmt.Printf("  %-8s full=%.3f partial=%.3f\n", cat, acc, report.Accs.PartialByCat[cat])
	}
	if report.FilesDropped > 0 || report.CheckFailures > 0 {
		fmt.Printf("  dropped %d files, %d checker failures\n", report.FilesDropped, report.CheckFailures)
	}
	return nil
}
