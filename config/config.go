// Package config handles configuration loading and validation for the
// reideval command.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all command configuration
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Model   ModelConfig   `yaml:"model"`
	Report  ReportConfig  `yaml:"report"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// DataConfig locates the labels and features of the evaluation set
type DataConfig struct {
	// Labels is the "person_id camera_id" per line file, queries first
	Labels string `envconfig:"REIDEVAL_LABELS" yaml:"labels"`
	// Features is a feature file, if empty features are extracted from Items
	Features string `envconfig:"REIDEVAL_FEATURES" yaml:"features"`
	// Items lists one image path per line, in label order
	Items string `envconfig:"REIDEVAL_ITEMS" yaml:"items"`
	// NumQuery is the number of leading items that are queries
	NumQuery int `envconfig:"REIDEVAL_NUM_QUERY" yaml:"num_query"`
}

// ModelConfig holds the feature extraction model settings
type ModelConfig struct {
	Name      string     `envconfig:"REIDEVAL_MODEL_NAME" yaml:"name"`
	File      string     `envconfig:"REIDEVAL_MODEL_FILE" yaml:"file"`
	Config    string     `envconfig:"REIDEVAL_MODEL_CONFIG" yaml:"config"`
	Backend   string     `envconfig:"REIDEVAL_MODEL_BACKEND" yaml:"backend"`
	Target    string     `envconfig:"REIDEVAL_MODEL_TARGET" yaml:"target"`
	Width     int        `envconfig:"REIDEVAL_MODEL_WIDTH" yaml:"width"`
	Height    int        `envconfig:"REIDEVAL_MODEL_HEIGHT" yaml:"height"`
	BatchSize int        `envconfig:"REIDEVAL_MODEL_BATCH_SIZE" yaml:"batch_size"`
	Workers   int        `envconfig:"REIDEVAL_MODEL_WORKERS" yaml:"workers"`
	Scale     float64    `envconfig:"REIDEVAL_MODEL_SCALE" yaml:"scale"`
	Mean      [3]float64 `ignored:"true" yaml:"mean"`
	SwapRB    bool       `envconfig:"REIDEVAL_MODEL_SWAP_RB" yaml:"swap_rb"`
}

// ReportConfig controls the diagnostics written after evaluation
type ReportConfig struct {
	MaxRank int    `envconfig:"REIDEVAL_REPORT_MAX_RANK" yaml:"max_rank"`
	TopK    int    `envconfig:"REIDEVAL_REPORT_TOP_K" yaml:"top_k"`
	Errors  int    `envconfig:"REIDEVAL_REPORT_ERRORS" yaml:"errors"`
	Bins    int    `envconfig:"REIDEVAL_REPORT_BINS" yaml:"bins"`
	Output  string `envconfig:"REIDEVAL_REPORT_OUTPUT" yaml:"output"`
	Format  string `envconfig:"REIDEVAL_REPORT_FORMAT" yaml:"format"`
}

// HistoryConfig controls recording of runs
type HistoryConfig struct {
	Enabled bool   `envconfig:"REIDEVAL_HISTORY_ENABLED" yaml:"enabled"`
	Path    string `envconfig:"REIDEVAL_HISTORY_PATH" yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"REIDEVAL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"REIDEVAL_LOG_FORMAT" yaml:"format"`
}

// Load builds the configuration with precedence defaults, YAML file, .env
// file, environment.  An empty path skips the YAML file.
func Load(path string) (*Config, error) {

	cfg := Defaults()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
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

// Defaults returns the configuration used when nothing overrides it.  Model
// defaults match an OSNet export taking 128x256 RGB input with ImageNet
// mean subtraction.
func Defaults() *Config {
	return &Config{
		Model: ModelConfig{
			Name:      "osnet_x1_0",
			Backend:   "default",
			Target:    "cpu",
			Width:     128,
			Height:    256,
			BatchSize: 8,
			Workers:   2,
			Scale:     1.0 / 255,
			Mean:      [3]float64{123.675, 116.28, 103.53},
			SwapRB:    true,
		},
		Report: ReportConfig{
			MaxRank: 50,
			TopK:    5,
			Errors:  10,
			Bins:    80,
			Output:  "-",
			Format:  "yaml",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "reideval.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration is usable for an evaluation run
func (c *Config) Validate() error {

	var errs []error

	if c.Data.Labels == "" {
		errs = append(errs, errors.New("data.labels is required"))
	}

	if c.Data.Features == "" && c.Data.Items == "" {
		errs = append(errs, errors.New("one of data.features or data.items is required"))
	}

	if c.Data.NumQuery <= 0 {
		errs = append(errs, errors.New("data.num_query must be positive"))
	}

	if c.Data.Features == "" {
		if c.Model.File == "" {
			errs = append(errs, errors.New("model.file is required to extract features"))
		}

		if c.Model.BatchSize <= 0 || c.Model.Workers <= 0 {
			errs = append(errs, errors.New("model.batch_size and model.workers must be positive"))
		}

		if c.Model.Width <= 0 || c.Model.Height <= 0 {
			errs = append(errs, errors.New("model.width and model.height must be positive"))
		}
	}

	if c.Report.MaxRank <= 0 || c.Report.TopK <= 0 || c.Report.Bins <= 0 {
		errs = append(errs, errors.New("report.max_rank, report.top_k and report.bins must be positive"))
	}

	switch c.Report.Format {
	case "yaml", "json":
	default:
		errs = append(errs, fmt.Errorf("report.format %q must be yaml or json", c.Report.Format))
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}

	return errors.Join(errs...)
}
