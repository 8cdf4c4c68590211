package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config holds all runtime configuration for a claimrisk run.
type Config struct {
	DSN       string
	DataDir   string
	LogFormat string // "text" or "json"
	LogLevel  string
	ModelDir  string
	ModelName string

	Scoring  Scoring
	Training Training
}

// Scoring tunes feature extraction and batch scoring.
type Scoring struct {
	BetweennessCeiling int           `yaml:"betweenness_ceiling" validate:"gt=0"`
	Workers            int           `yaml:"workers" validate:"gte=0"` // 0 means GOMAXPROCS
	TopFeatures        int           `yaml:"top_features" validate:"gt=0"`
	RunTimeout         time.Duration `yaml:"run_timeout" validate:"gte=0"`
	BatchSize          int           `yaml:"batch_size" validate:"gt=0"`
}

// Training holds model training hyperparameters.
type Training struct {
	UseResampling bool    `yaml:"use_resampling"`
	TestFraction  float64 `yaml:"test_fraction" validate:"gt=0,lt=1"`
	Seed          int64   `yaml:"seed"`
	Estimators    int     `yaml:"estimators" validate:"gt=0"`
	LearningRate  float64 `yaml:"learning_rate" validate:"gt=0"`
	MaxDepth      int     `yaml:"max_depth" validate:"gt=0"`
}

// Default returns a Config populated with the stock scoring and training settings.
func Default() Config {
	return Config{
		LogFormat: "text",
		LogLevel:  "info",
		ModelDir:  "models",
		ModelName: "fraud_detector",
		Scoring: Scoring{
			BetweennessCeiling: 5000,
			TopFeatures:        10,
			RunTimeout:         5 * time.Minute,
			BatchSize:          1000,
		},
		Training: Training{
			UseResampling: true,
			TestFraction:  0.2,
			Seed:          42,
			Estimators:    200,
			LearningRate:  0.1,
			MaxDepth:      5,
		},
	}
}

// yamlConfig is the on-disk YAML structure. Pointer fields distinguish
// "absent" from an explicit zero.
type yamlConfig struct {
	DataDir   string `yaml:"data_dir"`
	ModelDir  string `yaml:"model_dir"`
	ModelName string `yaml:"model_name"`
	Scoring   struct {
		BetweennessCeiling *int           `yaml:"betweenness_ceiling"`
		Workers            *int           `yaml:"workers"`
		TopFeatures        *int           `yaml:"top_features"`
		RunTimeout         *time.Duration `yaml:"run_timeout"`
		BatchSize          *int           `yaml:"batch_size"`
	} `yaml:"scoring"`
	Training struct {
		UseResampling *bool    `yaml:"use_resampling"`
		TestFraction  *float64 `yaml:"test_fraction"`
		Seed          *int64   `yaml:"seed"`
		Estimators    *int     `yaml:"estimators"`
		LearningRate  *float64 `yaml:"learning_rate"`
		MaxDepth      *int     `yaml:"max_depth"`
	} `yaml:"training"`
}

// LoadFromFile reads a YAML config file and merges the values it sets into Config.
// Flags set explicitly on the command line are applied after this call.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if yc.DataDir != "" {
		c.DataDir = yc.DataDir
	}
	if yc.ModelDir != "" {
		c.ModelDir = yc.ModelDir
	}
	if yc.ModelName != "" {
		c.ModelName = yc.ModelName
	}

	s := yc.Scoring
	setInt(&c.Scoring.BetweennessCeiling, s.BetweennessCeiling)
	setInt(&c.Scoring.Workers, s.Workers)
	setInt(&c.Scoring.TopFeatures, s.TopFeatures)
	setInt(&c.Scoring.BatchSize, s.BatchSize)
	if s.RunTimeout != nil {
		c.Scoring.RunTimeout = *s.RunTimeout
	}

	tr := yc.Training
	if tr.UseResampling != nil {
		c.Training.UseResampling = *tr.UseResampling
	}
	if tr.TestFraction != nil {
		c.Training.TestFraction = *tr.TestFraction
	}
	if tr.Seed != nil {
		c.Training.Seed = *tr.Seed
	}
	setInt(&c.Training.Estimators, tr.Estimators)
	if tr.LearningRate != nil {
		c.Training.LearningRate = *tr.LearningRate
	}
	setInt(&c.Training.MaxDepth, tr.MaxDepth)

	return c.validateRanges()
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// validateRanges checks numeric settings regardless of data source.
func (c *Config) validateRanges() error {
	if err := validate.Struct(c.Scoring); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if err := validate.Struct(c.Training); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	return nil
}

// Validate checks that a data source is configured and settings are in range.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "" && c.DSN == "":
		return fmt.Errorf("--data-dir or --dsn (CLAIMRISK_DB_URL) is required")
	case c.DataDir != "" && c.DSN != "":
		return fmt.Errorf("--data-dir and --dsn are mutually exclusive")
	}
	if c.DataDir != "" {
		info, err := os.Stat(c.DataDir)
		if err != nil {
			return fmt.Errorf("data dir not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("data dir %s is not a directory", c.DataDir)
		}
	}
	if c.ModelName == "" {
		return fmt.Errorf("--model-name is required")
	}
	return c.validateRanges()
}

// ValidateWithDSN checks that a database DSN is configured.
func (c *Config) ValidateWithDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or CLAIMRISK_DB_URL is required")
	}
	return nil
}
