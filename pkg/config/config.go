// Package config handles configuration loading and validation for the experiment.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every knob of one experiment run.
type Config struct {
	// Seed drives every random source (split, folds, SMOTE, weight init, bootstrap).
	Seed int64 `envconfig:"SPAM_SEED" yaml:"seed"`

	Data       DataConfig       `yaml:"data"`
	Split      SplitConfig      `yaml:"split"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	MLP        MLPConfig        `yaml:"mlp"`
	Search     SearchConfig     `yaml:"search"`
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
	Report     ReportConfig     `yaml:"report"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
}

// DataConfig describes the input file.
type DataConfig struct {
	Path           string `envconfig:"SPAM_DATA_PATH" yaml:"path"`
	LabelColumn    int    `envconfig:"SPAM_LABEL_COLUMN" yaml:"label_column"` // -1 = last column
	DropDuplicates bool   `envconfig:"SPAM_DROP_DUPLICATES" yaml:"drop_duplicates"`
}

// SplitConfig holds the train/validation fractions; the rest is test.
type SplitConfig struct {
	Train      float64 `envconfig:"SPAM_SPLIT_TRAIN" yaml:"train"`
	Validation float64 `envconfig:"SPAM_SPLIT_VALIDATION" yaml:"validation"`
}

// PreprocessConfig toggles and parameterizes the preprocessing steps.
type PreprocessConfig struct {
	Oversample            bool    `envconfig:"SPAM_OVERSAMPLE" yaml:"oversample"`
	Neighbors             int     `envconfig:"SPAM_SMOTE_NEIGHBORS" yaml:"neighbors"`
	LogTransform          bool    `envconfig:"SPAM_LOG_TRANSFORM" yaml:"log_transform"`
	LogOffset             float64 `envconfig:"SPAM_LOG_OFFSET" yaml:"log_offset"`
	Normalize             bool    `envconfig:"SPAM_NORMALIZE" yaml:"normalize"`
	PruneCorrelated       bool    `envconfig:"SPAM_PRUNE_CORRELATED" yaml:"prune_correlated"`
	CorrelationCutoff     float64 `envconfig:"SPAM_CORRELATION_CUTOFF" yaml:"correlation_cutoff"`
	PruneNearZeroVariance bool    `envconfig:"SPAM_PRUNE_NZV" yaml:"prune_near_zero_variance"`
	FreqRatio             float64 `envconfig:"SPAM_NZV_FREQ_RATIO" yaml:"freq_ratio"`
	UniqueCut             float64 `envconfig:"SPAM_NZV_UNIQUE_CUT" yaml:"unique_cut"`
}

// MLPConfig holds the network topology and its training schedule.
type MLPConfig struct {
	Enabled           bool    `envconfig:"SPAM_MLP_ENABLED" yaml:"enabled"`
	Hidden            []int   `envconfig:"SPAM_MLP_HIDDEN" yaml:"hidden"`
	Dropout           float64 `envconfig:"SPAM_MLP_DROPOUT" yaml:"dropout"`
	L2                float64 `envconfig:"SPAM_MLP_L2" yaml:"l2"`
	Optimizer         string  `envconfig:"SPAM_MLP_OPTIMIZER" yaml:"optimizer"` // adam or sgd
	LearningRate      float64 `envconfig:"SPAM_MLP_LR" yaml:"learning_rate"`
	MinLearningRate   float64 `envconfig:"SPAM_MLP_MIN_LR" yaml:"min_learning_rate"`
	PlateauFactor     float64 `envconfig:"SPAM_MLP_PLATEAU_FACTOR" yaml:"plateau_factor"`
	PlateauPatience   int     `envconfig:"SPAM_MLP_PLATEAU_PATIENCE" yaml:"plateau_patience"`
	EarlyStopPatience int     `envconfig:"SPAM_MLP_EARLY_STOP_PATIENCE" yaml:"early_stop_patience"`
	MinDelta          float64 `envconfig:"SPAM_MLP_MIN_DELTA" yaml:"min_delta"`
	MaxEpochs         int     `envconfig:"SPAM_MLP_MAX_EPOCHS" yaml:"max_epochs"`
	BatchSize         int     `envconfig:"SPAM_MLP_BATCH_SIZE" yaml:"batch_size"`
}

// SearchConfig holds the cross-validated grid search settings.
type SearchConfig struct {
	Folds    int      `envconfig:"SPAM_SEARCH_FOLDS" yaml:"folds"`
	Metric   string   `envconfig:"SPAM_SEARCH_METRIC" yaml:"metric"`
	Workers  int      `envconfig:"SPAM_SEARCH_WORKERS" yaml:"workers"`
	Families []string `envconfig:"SPAM_SEARCH_FAMILIES" yaml:"families"`

	// Grids maps a model family to its hyperparameter value lists.
	Grids map[string]map[string][]float64 `ignored:"true" yaml:"grids"`
}

// BootstrapConfig holds the resampling settings.
type BootstrapConfig struct {
	Resamples  int     `envconfig:"SPAM_BOOTSTRAP_RESAMPLES" yaml:"resamples"`
	Confidence float64 `envconfig:"SPAM_BOOTSTRAP_CONFIDENCE" yaml:"confidence"`
	Workers    int     `envconfig:"SPAM_BOOTSTRAP_WORKERS" yaml:"workers"`
}

// ReportConfig controls the written artifacts.
type ReportConfig struct {
	OutDir string `envconfig:"SPAM_OUT_DIR" yaml:"out_dir"`
	Plots  bool   `envconfig:"SPAM_PLOTS" yaml:"plots"`
}

// StoreConfig points at the optional SQLite results database. Empty path disables it.
type StoreConfig struct {
	Path string `envconfig:"SPAM_STORE_PATH" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SPAM_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SPAM_LOG_FORMAT" yaml:"format"`
	File   string `envconfig:"SPAM_LOG_FILE" yaml:"file"`
}

// Load loads configuration from defaults, an optional YAML file and the environment.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Environment wins over the file.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns the reference configuration of the report.
func Default() *Config {
	return &Config{
		Seed: 42,
		Data: DataConfig{
			Path:           "data/spambase.csv",
			LabelColumn:    -1,
			DropDuplicates: true,
		},
		Split: SplitConfig{
			Train:      0.6,
			Validation: 0.2,
		},
		Preprocess: PreprocessConfig{
			Oversample:            true,
			Neighbors:             5,
			LogTransform:          true,
			LogOffset:             1,
			Normalize:             true,
			PruneCorrelated:       true,
			CorrelationCutoff:     0.9,
			PruneNearZeroVariance: true,
			FreqRatio:             95.0 / 5.0,
			UniqueCut:             10,
		},
		MLP: MLPConfig{
			Enabled:           true,
			Hidden:            []int{128, 64, 32, 16},
			Dropout:           0.25,
			L2:                0.001,
			Optimizer:         "adam",
			LearningRate:      0.001,
			MinLearningRate:   0.00001,
			PlateauFactor:     0.8,
			PlateauPatience:   3,
			EarlyStopPatience: 5,
			MinDelta:          1e-4,
			MaxEpochs:         100,
			BatchSize:         32,
		},
		Search: SearchConfig{
			Folds:    5,
			Metric:   "precision",
			Workers:  4,
			Families: []string{"logreg", "nb", "rf"},
			Grids: map[string]map[string][]float64{
				"logreg": {
					"lambda": {0.0001, 0.001, 0.01, 0.1},
					"alpha":  {0, 0.5, 1},
				},
				"nb": {
					"var_smoothing": {1e-9, 1e-6, 1e-3, 1e-2, 1e-1},
				},
				"rf": {
					"n_trees":  {100, 250},
					"mtry":     {3, 5, 7},
					"min_leaf": {1, 5},
				},
			},
		},
		Bootstrap: BootstrapConfig{
			Resamples:  1000,
			Confidence: 0.95,
			Workers:    4,
		},
		Report: ReportConfig{
			OutDir: "report",
			Plots:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   "stderr",
		},
	}
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Data.Path == "" {
		errs = append(errs, "data.path is required")
	}
	if c.Data.LabelColumn < -1 {
		errs = append(errs, "data.label_column must be -1 (last) or a column index")
	}

	if c.Split.Train <= 0 || c.Split.Train >= 1 {
		errs = append(errs, "split.train must be in (0, 1)")
	}
	if c.Split.Validation <= 0 || c.Split.Validation >= 1 {
		errs = append(errs, "split.validation must be in (0, 1)")
	}
	if c.Split.Train+c.Split.Validation >= 1 {
		errs = append(errs, "split.train + split.validation must be below 1")
	}

	if c.Preprocess.Oversample && c.Preprocess.Neighbors < 1 {
		errs = append(errs, "preprocess.neighbors must be positive")
	}
	if c.Preprocess.LogTransform && c.Preprocess.LogOffset <= 0 {
		errs = append(errs, "preprocess.log_offset must be positive")
	}
	if c.Preprocess.CorrelationCutoff <= 0 || c.Preprocess.CorrelationCutoff > 1 {
		errs = append(errs, "preprocess.correlation_cutoff must be in (0, 1]")
	}

	if c.MLP.Enabled {
		if len(c.MLP.Hidden) == 0 {
			errs = append(errs, "mlp.hidden must list at least one layer width")
		}
		for _, w := range c.MLP.Hidden {
			if w < 1 {
				errs = append(errs, "mlp.hidden widths must be positive")
				break
			}
		}
		if c.MLP.Dropout < 0 || c.MLP.Dropout >= 1 {
			errs = append(errs, "mlp.dropout must be in [0, 1)")
		}
		if c.MLP.Optimizer != "adam" && c.MLP.Optimizer != "sgd" {
			errs = append(errs, fmt.Sprintf("invalid mlp optimizer: %s (must be adam or sgd)", c.MLP.Optimizer))
		}
		if c.MLP.LearningRate <= 0 {
			errs = append(errs, "mlp.learning_rate must be positive")
		}
		if c.MLP.PlateauFactor <= 0 || c.MLP.PlateauFactor >= 1 {
			errs = append(errs, "mlp.plateau_factor must be in (0, 1)")
		}
		if c.MLP.PlateauPatience < 1 || c.MLP.EarlyStopPatience < 1 {
			errs = append(errs, "mlp.plateau_patience and mlp.early_stop_patience must be positive")
		}
		if c.MLP.MaxEpochs < 1 || c.MLP.BatchSize < 1 {
			errs = append(errs, "mlp.max_epochs and mlp.batch_size must be positive")
		}
	}

	if c.Search.Folds < 1 {
		errs = append(errs, "search.folds must be positive")
	}
	validMetrics := map[string]bool{"precision": true, "recall": true, "f1": true, "accuracy": true}
	if !validMetrics[c.Search.Metric] {
		errs = append(errs, fmt.Sprintf("invalid search metric: %s (must be precision, recall, f1, or accuracy)", c.Search.Metric))
	}
	for _, family := range c.Search.Families {
		grid, ok := c.Search.Grids[family]
		if !ok || len(grid) == 0 {
			errs = append(errs, fmt.Sprintf("search.grids has no grid for family %q", family))
			continue
		}
		names := make([]string, 0, len(grid))
		for name := range grid {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if len(grid[name]) == 0 {
				errs = append(errs, fmt.Sprintf("search.grids.%s.%s is empty", family, name))
			}
		}
	}

	if c.Bootstrap.Resamples < 1 {
		errs = append(errs, "bootstrap.resamples must be positive")
	}
	if c.Bootstrap.Confidence <= 0 || c.Bootstrap.Confidence >= 1 {
		errs = append(errs, "bootstrap.confidence must be in (0, 1)")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be console or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
