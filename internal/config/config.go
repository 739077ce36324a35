package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/rectgp"
)

// Environment variables read by applyEnvOverrides.
const (
	EnvQuick    = "RECTGP_QUICK"
	EnvSeed     = "RECTGP_SEED"
	EnvLogLevel = "RECTGP_LOG_LEVEL"
)

// Config holds all rectgp configuration.
type Config struct {
	// Dataset generation
	Dataset DatasetConfig `yaml:"dataset"`

	// Lengthscale optimizer
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// Classifiers being compared
	Models ModelsConfig `yaml:"models"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DatasetConfig configures the rectangle generator.
type DatasetConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	TrainCount  int    `yaml:"train_count"`
	TestCount   int    `yaml:"test_count"`
	Seed        int64  `yaml:"seed"`
	MaxAttempts int    `yaml:"max_attempts"`
	Exhaustion  string `yaml:"exhaustion"` // accept-degenerate, fail
}

// OptimizerConfig configures lengthscale tuning.
type OptimizerConfig struct {
	// MaxIterations is the iteration budget per tuning run. 0 disables
	// tuning and keeps the configured lengthscales.
	MaxIterations  int     `yaml:"max_iterations"`
	InitialSamples int     `yaml:"initial_samples"`
	NumCandidates  int     `yaml:"num_candidates"`
	Acquisition    string  `yaml:"acquisition"` // ucb, pi, ei, thompson
	Beta           float64 `yaml:"beta"`
	Xi             float64 `yaml:"xi"`
	SurrogateWidth float64 `yaml:"surrogate_width"`
	Seed           int64   `yaml:"seed"`
}

// ModelsConfig configures the compared classifiers.
type ModelsConfig struct {
	SquaredExponential KernelConfig        `yaml:"squared_exponential"`
	Convolutional      ConvolutionalConfig `yaml:"convolutional"`
	Prior              float64             `yaml:"prior"`
	Workers            int                 `yaml:"workers"` // 0 = GOMAXPROCS
}

// KernelConfig configures one kernel.
type KernelConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Variance       float64 `yaml:"variance"`
	Lengthscale    float64 `yaml:"lengthscale"`
	MinLengthscale float64 `yaml:"min_lengthscale"`
	MaxLengthscale float64 `yaml:"max_lengthscale"`
}

// ConvolutionalConfig adds the patch shape to a KernelConfig.
type ConvolutionalConfig struct {
	KernelConfig `yaml:",inline"`
	PatchWidth   int `yaml:"patch_width"`
	PatchHeight  int `yaml:"patch_height"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the full experiment: 100 training and 300 test
// samples of 14x14 pixels, 100 optimizer iterations per model.
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Width:       14,
			Height:      14,
			TrainCount:  100,
			TestCount:   300,
			Seed:        1,
			MaxAttempts: rectgp.DefaultMaxAttempts,
			Exhaustion:  rectgp.AcceptDegenerate.String(),
		},

		Optimizer: OptimizerConfig{
			MaxIterations:  100,
			InitialSamples: 5,
			NumCandidates:  50,
			Acquisition:    "ucb",
			Beta:           2.0,
			Xi:             0.01,
			SurrogateWidth: rectgp.DefaultSurrogateWidth,
			Seed:           1,
		},

		Models: ModelsConfig{
			SquaredExponential: KernelConfig{
				Enabled:        true,
				Variance:       1,
				Lengthscale:    2,
				MinLengthscale: 0.1,
				MaxLengthscale: 10,
			},
			Convolutional: ConvolutionalConfig{
				KernelConfig: KernelConfig{
					Enabled:        true,
					Variance:       1,
					Lengthscale:    1,
					MinLengthscale: 0.1,
					MaxLengthscale: 5,
				},
				PatchWidth:  3,
				PatchHeight: 3,
			},
			Prior: rectgp.DefaultPrior,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// QuickConfig returns the smoke-test preset: 5 training and 7 test samples
// and 2 optimizer iterations.
func QuickConfig() *Config {
	cfg := DefaultConfig()
	cfg.ApplyQuick()

	return cfg
}

// ApplyQuick switches the sample counts and the optimizer budget to the
// QuickConfig values, leaving everything else alone.
func (c *Config) ApplyQuick() {
	c.Dataset.TrainCount = 5
	c.Dataset.TestCount = 7
	c.Optimizer.MaxIterations = 2
	c.Optimizer.InitialSamples = 2
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvQuick); v != "" {
		quick, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvQuick, v, err)
		}

		if quick {
			c.ApplyQuick()
		}
	}

	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvSeed, v, err)
		}

		c.Dataset.Seed = seed
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	return nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	d := c.Dataset
	if d.Width < rectgp.MinCanvasSize || d.Height < rectgp.MinCanvasSize {
		errs = append(errs, fmt.Errorf("dataset: %w: got %dx%d", rectgp.ErrCanvasTooSmall, d.Width, d.Height))
	}

	if d.TrainCount < 1 || d.TestCount < 1 {
		errs = append(errs, fmt.Errorf("dataset: train_count and test_count must be positive, got %d and %d", d.TrainCount, d.TestCount))
	}

	if d.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("dataset: %w", rectgp.ErrInvalidAttempts))
	}

	if _, ok := rectgp.ParseExhaustionPolicy(d.Exhaustion); !ok {
		errs = append(errs, fmt.Errorf("dataset: unknown exhaustion policy %q", d.Exhaustion))
	}

	o := c.Optimizer
	if o.MaxIterations < 0 || o.InitialSamples < 0 || o.NumCandidates < 0 {
		errs = append(errs, errors.New("optimizer: counts must not be negative"))
	}

	if o.SurrogateWidth < 0 {
		errs = append(errs, fmt.Errorf("optimizer: surrogate_width must not be negative, got %v", o.SurrogateWidth))
	}

	if o.MaxIterations > 0 && c.Dataset.TrainCount < 2 {
		errs = append(errs, errors.New("optimizer: tuning needs train_count >= 2"))
	}

	if _, ok := rectgp.AcquisitionByName(o.Acquisition); !ok {
		errs = append(errs, fmt.Errorf("optimizer: unknown acquisition %q", o.Acquisition))
	}

	m := c.Models
	if !m.SquaredExponential.Enabled && !m.Convolutional.Enabled {
		errs = append(errs, errors.New("models: at least one model must be enabled"))
	}

	if m.SquaredExponential.Enabled {
		errs = append(errs, m.SquaredExponential.validate("squared_exponential")...)
	}

	if m.Convolutional.Enabled {
		errs = append(errs, m.Convolutional.validate("convolutional")...)

		if m.Convolutional.PatchWidth < 1 || m.Convolutional.PatchHeight < 1 ||
			m.Convolutional.PatchWidth > d.Width || m.Convolutional.PatchHeight > d.Height {
			errs = append(errs, fmt.Errorf("models.convolutional: patch %dx%d does not fit %dx%d",
				m.Convolutional.PatchWidth, m.Convolutional.PatchHeight, d.Width, d.Height))
		}
	}

	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (k KernelConfig) validate(name string) []error {
	var errs []error

	if k.Variance <= 0 || k.Lengthscale <= 0 {
		errs = append(errs, fmt.Errorf("models.%s: variance and lengthscale must be positive", name))
	}

	if k.MinLengthscale <= 0 || k.MinLengthscale > k.MaxLengthscale {
		errs = append(errs, fmt.Errorf("models.%s: need 0 < min_lengthscale <= max_lengthscale", name))
	}

	return errs
}
