package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the type inference pipeline.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Ctx     CtxConfig     `yaml:"ctx"`
	Train   TrainConfig   `yaml:"train"`
	Checker CheckerConfig `yaml:"checker"`
	Workers int           `yaml:"workers"`
	Logging LoggingConfig `yaml:"logging"`
}

// DatasetConfig holds dataset construction configuration.
type DatasetConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	MaxLineWidth int      `yaml:"max_line_width"`
	LabelRatio   float64  `yaml:"label_ratio"`
	Seed         int64    `yaml:"seed"`
	DropComments bool     `yaml:"drop_comments"`
}

// CtxConfig holds chunking window configuration.
type CtxConfig struct {
	CtxSize     int  `yaml:"ctx_size"`
	LeftMargin  int  `yaml:"left_margin"`
	RightMargin int  `yaml:"right_margin"`
	TypesInCtx  bool `yaml:"types_in_ctx"`
}

// TrainConfig holds training loop configuration.
type TrainConfig struct {
	GradAccumSteps   int     `yaml:"grad_accum_steps"`
	Concurrency      int     `yaml:"concurrency"`
	ReplayBufferSize int     `yaml:"replay_buffer_size"`
	SavesPerEpoch    int     `yaml:"saves_per_epoch"`
	ExpertRate       float64 `yaml:"expert_rate"`
	SaveDir          string  `yaml:"save_dir"`
}

// CheckerConfig holds type checker configuration.
type CheckerConfig struct {
	SearchPath string `yaml:"search_path"`
	CacheSize  int    `yaml:"cache_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Includes:     []string{"**/*.go"},
			Excludes:     []string{"**/vendor/**", "**/.git/**", "**/testdata/**", "**/*_test.go"},
			MaxLineWidth: 200,
			LabelRatio:   0.5,
			Seed:         42,
			DropComments: true,
		},
		Ctx: CtxConfig{
			CtxSize:     2048,
			LeftMargin:  1024,
			RightMargin: 1023,
			TypesInCtx:  true,
		},
		Train: TrainConfig{
			GradAccumSteps:   16,
			Concurrency:      runtime.NumCPU(),
			ReplayBufferSize: 1000,
			SavesPerEpoch:    5,
			ExpertRate:       1,
			SaveDir:          "checkpoints",
		},
		Checker: CheckerConfig{
			SearchPath: "",
			CacheSize:  512,
		},
		Workers: runtime.NumCPU(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for typeinf.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "typeinf.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".typeinf", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Ctx.CtxSize <= 0 {
		return fmt.Errorf("ctx_size must be positive, got %d", c.Ctx.CtxSize)
	}
	if c.Ctx.LeftMargin < 0 || c.Ctx.RightMargin < 0 {
		return fmt.Errorf("margins must be non-negative")
	}
	if c.Ctx.LeftMargin+c.Ctx.RightMargin >= c.Ctx.CtxSize {
		return fmt.Errorf("margins %d+%d leave no window inside ctx_size %d",
			c.Ctx.LeftMargin, c.Ctx.RightMargin, c.Ctx.CtxSize)
	}
	if c.Dataset.LabelRatio < 0 || c.Dataset.LabelRatio > 1 {
		return fmt.Errorf("label_ratio must be in [0,1], got %g", c.Dataset.LabelRatio)
	}
	if c.Train.ExpertRate < 0 || c.Train.ExpertRate > 1 {
		return fmt.Errorf("expert_rate must be in [0,1], got %g", c.Train.ExpertRate)
	}
	if c.Train.GradAccumSteps < 1 {
		return fmt.Errorf("grad_accum_steps must be at least 1, got %d", c.Train.GradAccumSteps)
	}
	if c.Train.ReplayBufferSize < 1 {
		return fmt.Errorf("replay_buffer_size must be at least 1, got %d", c.Train.ReplayBufferSize)
	}
	return nil
}

// DatasetDBPath returns the path to the dataset database.
func DatasetDBPath(dir string) string {
	return filepath.Join(dir, ".typeinf", "datasets.db")
}

// EnsureStateDir ensures the .typeinf directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".typeinf"), 0755)
}
