package cli

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"typeinf/config"
	"typeinf/internal/adapter/store"
)

var (
	trainFrac float64
	validFrac float64
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build and inspect tokenized datasets",
}

var datasetBuildCmd = &cobra.Command{
	Use:   "build [repos-root]",
	Short: "Tokenize a corpus of repositories into chunked datasets",
	Long: `Split the repositories under repos-root into train/valid/test sets,
mask a random fraction of the type annotations in each file, tokenize and
chunk every split, and store the result in .typeinf/datasets.db.

Examples:
  typeinf dataset build ./repos
  typeinf dataset build ./repos --train-frac 0.9 --valid-frac 0.05`,
	Args: cobra.ExactArgs(1),
	RunE: runDatasetBuild,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetBuildCmd)
	datasetBuildCmd.Flags().Float64Var(&trainFrac, "train-frac", 0.8, "fraction of repos in the train split")
	datasetBuildCmd.Flags().Float64Var(&validFrac, "valid-frac", 0.1, "fraction of repos in the valid split")
}

func runDatasetBuild(cmd *cobra.Command, args []string) error {
	reposRoot, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(reposRoot)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", reposRoot)
	}
	if trainFrac <= 0 || validFrac < 0 || trainFrac+validFrac >= 1 {
		return fmt.Errorf("train-frac %g and valid-frac %g must leave room for a test split", trainFrac, validFrac)
	}

	cfg := GetConfig()
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	split, err := splitRepos(reposRoot, cfg.Dataset.Seed)
	if err != nil {
		return err
	}

	if err := config.EnsureStateDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create .typeinf directory: %w", err)
	}
	st, err := store.NewDatasetStore(config.DatasetDBPath(GetRootDir()))
	if err != nil {
		return err
	}
	defer st.Close()

	// Record the corpus root so train/eval can rebuild sources later.
	split["_root"] = []string{reposRoot}
	if err := st.SaveReposSplit(split); err != nil {
		return fmt.Errorf("failed to save repos split: %w", err)
	}

	for _, name := range []string{"train", "valid", "test"} {
		repos := split[name]
		fmt.Printf("Building %s split (%d repos)...\n", name, len(repos))
		bar := newBar(1, "Tokenizing")
		ds, err := buildSplitSrcs(cmd.Context(), p, cfg, reposRoot, repos, bar)
		if err != nil {
			return fmt.Errorf("failed to build %s split: %w", name, err)
		}
		chunks, err := ds.ToChunks(p.chunker)
		if err != nil {
			return fmt.Errorf("failed to chunk %s split: %w", name, err)
		}
		if err := st.SaveDataset(name, chunks); err != nil {
			return fmt.Errorf("failed to save %s split: %w", name, err)
		}
		fmt.Printf("  %d files, %d labels, %d chunks (%d scanned, %d too wide, %d dropped)\n",
			len(ds.Srcs), ds.NumLabels(), chunks.Len(),
			ds.Stats.FilesScanned, ds.Stats.FilesTooWide, ds.Stats.FilesDropped)
	}
	return nil
}

// splitRepos deterministically partitions the immediate subdirectories
// of reposRoot into train/valid/test sets.
func splitRepos(reposRoot string, seed int64) (map[string][]string, error) {
	entries, err := os.ReadDir(reposRoot)
	if err != nil {
		return nil, err
	}
	var repos []string
	for _, e := range entries {
		if e.IsDir() {
			repos = append(repos, e.Name())
		}
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories found under %s", reposRoot)
	}
	sort.Strings(repos)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(repos), func(i, j int) { repos[i], repos[j] = repos[j], repos[i] })

	nTrain := int(float64(len(repos)) * trainFrac)
	nValid := int(float64(len(repos)) * validFrac)
	split := map[string][]string{
		"train": repos[:nTrain],
		"valid": repos[nTrain : nTrain+nValid],
		"test":  repos[nTrain+nValid:],
	}
	return split, nil
}
