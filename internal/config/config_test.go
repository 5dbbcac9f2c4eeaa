package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "OOPS_DATA_DIR", "OOPS_ASSET_DRIVER",
		"OOPS_S3_BUCKET", "OOPS_S3_ENDPOINT", "OOPS_GCS_BUCKET", "OOPS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Paths.ExercisesDir != "web/data/exercises" {
		t.Errorf("expected ExercisesDir=web/data/exercises, got %s", cfg.Paths.ExercisesDir)
	}
	if cfg.Generation.Model != "" || cfg.Generation.AspectRatio != "" {
		t.Errorf("expected mode defaults for model and ratio, got %q %q", cfg.Generation.Model, cfg.Generation.AspectRatio)
	}
	if cfg.Assets.Driver != "fs" {
		t.Errorf("expected Driver=fs, got %s", cfg.Assets.Driver)
	}
	if cfg.Assets.URLPrefix != "/icons/exercises" {
		t.Errorf("expected URLPrefix=/icons/exercises, got %s", cfg.Assets.URLPrefix)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "oops.yaml")

	cfg := DefaultConfig()
	cfg.Generation.Mode = "imagen"
	cfg.Generation.Concurrency = 3
	cfg.Generation.APIKey = "secret"
	cfg.Assets.Driver = "s3"
	cfg.Assets.S3.Bucket = "icons"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got := string(raw); strings.Contains(got, "secret") {
		t.Errorf("API key must not be persisted:\n%s", got)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Generation.Mode != "imagen" {
		t.Errorf("expected Mode=imagen, got %s", loaded.Generation.Mode)
	}
	if loaded.Generation.Concurrency != 3 {
		t.Errorf("expected Concurrency=3, got %d", loaded.Generation.Concurrency)
	}
	if loaded.Assets.S3.Bucket != "icons" {
		t.Errorf("expected bucket=icons, got %s", loaded.Assets.S3.Bucket)
	}
	if loaded.Generation.APIKey != "" {
		t.Errorf("expected empty APIKey, got %s", loaded.Generation.APIKey)
	}
	if cfg.Generation.APIKey != "secret" {
		t.Errorf("Save must not mutate the receiver")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generation.Model != DefaultConfig().Generation.Model {
		t.Errorf("expected defaults, got model %s", cfg.Generation.Model)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "oops.yaml")
	if err := os.WriteFile(path, []byte("generation:\n  delay: 1s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Generation.GetDelay(); got != time.Second {
		t.Errorf("expected delay 1s, got %v", got)
	}
	if cfg.Generation.MIMEType != "image/png" {
		t.Errorf("expected default MIME type, got %s", cfg.Generation.MIMEType)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oops.yaml")
	if err := os.WriteFile(path, []byte("generation: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	clearEnv(t)

	cfg := DefaultConfig()
	if err := cfg.Validate(false); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if err := cfg.Validate(true); err != nil {
		t.Errorf("dry run should not require a key: %v", err)
	}

	cfg.Generation.APIKey = "k"
	if err := cfg.Validate(false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Assets.Driver = "gcs"
	if err := cfg.Validate(false); err == nil {
		t.Error("expected error for gcs without bucket")
	}

	cfg.Assets.Driver = "ftp"
	if err := cfg.Validate(false); err == nil {
		t.Error("expected error for unknown driver")
	}

	cfg = DefaultConfig()
	cfg.Generation.Mode = "video"
	if err := cfg.Validate(true); err == nil {
		t.Error("expected error for unknown mode")
	}

	cfg = DefaultConfig()
	cfg.Generation.Delay = "soon"
	if err := cfg.Validate(true); err == nil {
		t.Error("expected error for unparseable delay")
	}
}

func TestConfig_ValidateRequestShape(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		mode    string
		model   string
		ratio   string
		wantErr bool
	}{
		{name: "content default ratio", mode: "generate_content"},
		{name: "content wide", mode: "generate_content", ratio: "21:9"},
		{name: "content 3:1", mode: "generate_content", ratio: "3:1", wantErr: true},
		{name: "imagen default ratio", mode: "imagen"},
		{name: "imagen 16:9", mode: "imagen", ratio: "16:9"},
		{name: "imagen 21:9", mode: "imagen", ratio: "21:9", wantErr: true},
		{name: "imagen 3:1", mode: "imagen", ratio: "3:1", wantErr: true},
		{name: "imagen with content model", mode: "imagen", model: "nano-banana-pro-preview", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Generation.Mode = tt.mode
			cfg.Generation.Model = tt.model
			cfg.Generation.AspectRatio = tt.ratio
			err := cfg.Validate(true)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDurationGetters(t *testing.T) {
	g := GenerationConfig{}
	if got := g.GetDelay(); got != 600*time.Millisecond {
		t.Errorf("expected 600ms fallback, got %v", got)
	}
	if got := g.GetTimeout(); got != 120*time.Second {
		t.Errorf("expected 120s fallback, got %v", got)
	}

	g.Delay = "bogus"
	g.Timeout = "-5s"
	if got := g.GetDelay(); got != 600*time.Millisecond {
		t.Errorf("invalid delay should fall back, got %v", got)
	}
	if got := g.GetTimeout(); got != 120*time.Second {
		t.Errorf("negative timeout should fall back, got %v", got)
	}
}
