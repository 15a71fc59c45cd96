package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"typeinf/config"
	"typeinf/internal/adapter/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored dataset statistics",
	Long: `Print chunk, file and label counts for every stored split, with a
per-category label breakdown.

Example:
  typeinf stats`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	rootDir := GetRootDir()
	dbPath := config.DatasetDBPath(rootDir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no datasets found. Run 'typeinf dataset build' first")
	}
	st, err := store.NewDatasetStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, name := range []string{"train", "valid", "test"} {
		ds, err := st.LoadDataset(name)
		if err != nil {
			fmt.Printf("%s: not built\n", name)
			continue
		}
		nLabels := 0
		byCat := map[string]int{}
		for _, info := range ds.Info {
			nLabels += len(info.Types)
			for _, site := range info.SitesInfo {
				byCat[site.Category.String()]++
			}
		}
		fmt.Printf("%s: %d chunks, %d files, %d labels\n", name, ds.Len(), len(ds.Files), nLabels)
		cats := make([]string, 0, len(byCat))
		for c := range byCat {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Printf("  %-8s %d\n", c, byCat[c])
		}
	}

	split, err := st.LoadReposSplit()
	if err == nil {
		fmt.Printf("repos: train=%d valid=%d test=%d\n",
			len(split["train"]), len(split["valid"]), len(split["test"]))
	}
	return nil
}
