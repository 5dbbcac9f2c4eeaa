package config

import (
	"fmt"
	"strings"
	"time"

	"oops/internal/imagegen"
)

// GenerationConfig configures the image generation service and batch pacing.
type GenerationConfig struct {
	Mode        string `yaml:"mode"` // generate_content, imagen
	Model       string `yaml:"model"` // empty selects the mode's default
	APIKey      string `yaml:"api_key"`
	MIMEType    string `yaml:"mime_type"`
	Extension   string `yaml:"extension"`
	AspectRatio string `yaml:"aspect_ratio"` // empty selects the mode's default
	SafetyLevel string `yaml:"safety_level"`

	Delay          string  `yaml:"delay"`           // pause after each success
	FailureBackoff float64 `yaml:"failure_backoff"` // multiplier of Delay after a failure
	Timeout        string  `yaml:"timeout"`         // per call
	Concurrency    int     `yaml:"concurrency"`
	RateLimit      float64 `yaml:"rate_limit"` // calls per second, 0 = unlimited
}

// GetDelay returns the success delay (default 600ms).
func (g *GenerationConfig) GetDelay() time.Duration {
	return parseDuration(g.Delay, 600*time.Millisecond)
}

// GetTimeout returns the per-call timeout (default 120s).
func (g *GenerationConfig) GetTimeout() time.Duration {
	return parseDuration(g.Timeout, 120*time.Second)
}

func (g *GenerationConfig) validate() error {
	switch g.Mode {
	case "", "generate_content", "imagen":
	default:
		return fmt.Errorf("generation.mode %q must be generate_content or imagen", g.Mode)
	}
	if g.Extension != "" && !strings.HasPrefix(g.Extension, ".") {
		return fmt.Errorf("generation.extension %q must start with a dot", g.Extension)
	}
	if g.FailureBackoff < 0 {
		return fmt.Errorf("generation.failure_backoff must not be negative")
	}
	if g.Concurrency < 0 {
		return fmt.Errorf("generation.concurrency must not be negative")
	}
	if g.RateLimit < 0 {
		return fmt.Errorf("generation.rate_limit must not be negative")
	}
	for name, v := range map[string]string{"delay": g.Delay, "timeout": g.Timeout} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("generation.%s: %w", name, err)
		}
	}
	opts := imagegen.Options{
		Mode:        imagegen.Mode(g.Mode),
		Model:       g.Model,
		MIMEType:    g.MIMEType,
		AspectRatio: g.AspectRatio,
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}
