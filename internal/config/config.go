// Package config loads the oops pipeline configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when a real run has no service credentials.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// Config holds all oops configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Generation GenerationConfig `yaml:"generation"`
	Assets     AssetsConfig     `yaml:"assets"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// PathsConfig locates the record collections and the curated tables.
type PathsConfig struct {
	ExercisesDir string   `yaml:"exercises_dir"`
	Auxiliary    []string `yaml:"auxiliary"` // non-record files next to the collections

	// Optional overrides of the embedded curated tables.
	ProgressionFile string `yaml:"progression_file"`
	HintsFile       string `yaml:"hints_file"`
	StyleFile       string `yaml:"style_file"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"` // empty disables export
}

// DefaultConfig returns the layout of the web app repository.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			ExercisesDir: "web/data/exercises",
			Auxiliary:    []string{"LICENSE", "image_prompts.txt"},
		},

		Generation: GenerationConfig{
			Mode:           "generate_content",
			MIMEType:       "image/png",
			Extension:      ".png",
			SafetyLevel:    "BLOCK_ONLY_HIGH",
			Delay:          "600ms",
			FailureBackoff: 2.0,
			Timeout:        "120s",
			Concurrency:    1,
		},

		Assets: AssetsConfig{
			Driver:    "fs",
			Dir:       "web/icons/exercises",
			URLPrefix: "/icons/exercises",
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "icons/exercises",
			},
			GCS: GCSConfig{
				Prefix: "icons/exercises",
			},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults; environment
// overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML. The API key is never persisted.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	clone := *c
	clone.Generation.APIKey = ""
	data, err := yaml.Marshal(&clone)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Generation.APIKey = key
	}
	if dir := os.Getenv("OOPS_DATA_DIR"); dir != "" {
		c.Paths.ExercisesDir = dir
	}
	if driver := os.Getenv("OOPS_ASSET_DRIVER"); driver != "" {
		c.Assets.Driver = driver
	}
	if bucket := os.Getenv("OOPS_S3_BUCKET"); bucket != "" {
		c.Assets.S3.Bucket = bucket
	}
	if endpoint := os.Getenv("OOPS_S3_ENDPOINT"); endpoint != "" {
		c.Assets.S3.Endpoint = endpoint
	}
	if bucket := os.Getenv("OOPS_GCS_BUCKET"); bucket != "" {
		c.Assets.GCS.Bucket = bucket
	}
	if level := os.Getenv("OOPS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration. dryRun relaxes the credential requirement
// because dry runs never call the service.
func (c *Config) Validate(dryRun bool) error {
	var errs []error

	if strings.TrimSpace(c.Paths.ExercisesDir) == "" {
		errs = append(errs, fmt.Errorf("paths.exercises_dir is required"))
	}
	if !dryRun && c.Generation.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if err := c.Generation.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Assets.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Logging.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// parseDuration falls back when s is empty or invalid.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
