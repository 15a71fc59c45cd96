package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"typeinf/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "typeinf",
	Short: "Predict missing Go type annotations with type-checker feedback",
	Long: `typeinf builds datasets of partially-erased Go sources, trains a
sequence model to fill the erased type annotations back in, and evaluates
predictions with an iterative loop that feeds type-checker diagnostics
back into the model input.

Example usage:
  typeinf dataset build ./repos        # Tokenize and chunk the corpus
  typeinf train                        # Run a feedback-training epoch
  typeinf eval                         # Score predictions on the test split`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./typeinf.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
