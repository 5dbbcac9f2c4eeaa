package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oops/internal/config"
	"oops/internal/imagegen"
	"oops/internal/logging"
	"oops/internal/progression"
)

const pushJSON = `[
  {
    "id": "push_knee",
    "name_en": "Knee push-up",
    "category": "push",
    "movement_pattern": "horizontal_push",
    "instructions_en": "Lower the chest to the floor.",
    "progression_to": null
  },
  {
    "id": "push_standard",
    "name_en": "Push-up",
    "category": "push",
    "movement_pattern": "horizontal_push",
    "progression_to": null
  }
]
`

const coreJSON = `[
  {
    "id": "plank",
    "name_en": "Plank",
    "category": "core",
    "movement_pattern": "anti_extension",
    "progression_to": null,
    "image_url": "/icons/exercises/plank.png"
  }
]
`

const chainsYAML = `push_knee: push_standard
push_standard: null
plank: null
`

type workspace struct {
	dir        string
	dataDir    string
	assetsDir  string
	configPath string
	metrics    string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "OOPS_DATA_DIR", "OOPS_ASSET_DRIVER",
		"OOPS_S3_BUCKET", "OOPS_S3_ENDPOINT", "OOPS_GCS_BUCKET", "OOPS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	t.Cleanup(logging.CloseAll)

	dir := t.TempDir()
	ws := &workspace{
		dir:        dir,
		dataDir:    filepath.Join(dir, "exercises"),
		assetsDir:  filepath.Join(dir, "icons"),
		configPath: filepath.Join(dir, "oops.yaml"),
		metrics:    filepath.Join(dir, "oops.prom"),
	}
	require.NoError(t, os.MkdirAll(ws.dataDir, 0o755))
	ws.write(t, "push.json", pushJSON)
	ws.write(t, "core.json", coreJSON)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chains.yaml"), []byte(chainsYAML), 0o644))

	cfg := config.DefaultConfig()
	cfg.Paths.ExercisesDir = ws.dataDir
	cfg.Paths.ProgressionFile = filepath.Join(dir, "chains.yaml")
	cfg.Assets.Dir = ws.assetsDir
	cfg.Generation.Delay = "0s"
	cfg.Generation.Timeout = "5s"
	cfg.Logging.Level = "error"
	cfg.Metrics.TextfilePath = ws.metrics
	require.NoError(t, cfg.Save(ws.configPath))

	return ws
}

func (ws *workspace) write(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ws.dataDir, name), []byte(body), 0o644))
}

func (ws *workspace) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ws.dataDir, name))
	require.NoError(t, err)
	return string(data)
}

// run executes the CLI with gen standing in for the service client.
func (ws *workspace) run(t *testing.T, gen imagegen.Generator, args ...string) (string, error) {
	t.Helper()
	ro := &rootOptions{
		newGenerator: func(ctx context.Context, opts imagegen.Options) (imagegen.Generator, error) {
			if gen == nil {
				return nil, errors.New("no generator in test")
			}
			return gen, nil
		},
	}
	cmd := newRootCmdWith(ro)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", ws.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImages_DryRun(t *testing.T) {
	ws := newWorkspace(t)
	before := ws.read(t, "push.json")

	out, err := ws.run(t, nil, "images", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Generated: 2, Skipped: 1, Errors: 0 (dry run)")
	assert.Contains(t, out, "Exercise: Knee push-up (push / horizontal_push).")
	assert.Contains(t, out, "/icons/exercises/push_standard.png")
	assert.Equal(t, before, ws.read(t, "push.json"))
	assert.NoDirExists(t, ws.assetsDir)
	assert.NoFileExists(t, ws.metrics)
}

func TestImages_Generate(t *testing.T) {
	ws := newWorkspace(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	var calls atomic.Int32
	gen := imagegen.Func(func(ctx context.Context, prompt string) ([]byte, error) {
		calls.Add(1)
		return []byte("\x89PNG fake"), nil
	})

	out, err := ws.run(t, gen, "images")
	require.NoError(t, err)

	assert.Contains(t, out, "Generated: 2, Skipped: 1, Errors: 0")
	assert.Equal(t, int32(2), calls.Load())
	assert.FileExists(t, filepath.Join(ws.assetsDir, "push_knee.png"))
	assert.FileExists(t, filepath.Join(ws.assetsDir, "push_standard.png"))
	assert.Contains(t, ws.read(t, "push.json"), `"image_url": "/icons/exercises/push_knee.png"`)
	assert.Equal(t, coreJSON, ws.read(t, "core.json"))
	assert.FileExists(t, ws.metrics)

	// Second run finds every reference in place.
	out, err = ws.run(t, gen, "images")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated: 0, Skipped: 3, Errors: 0")
	assert.Equal(t, int32(2), calls.Load())
}

func TestImages_PartialFailureExitsCleanly(t *testing.T) {
	ws := newWorkspace(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	gen := imagegen.Func(func(ctx context.Context, prompt string) ([]byte, error) {
		if strings.Contains(prompt, "Knee push-up") {
			return nil, errors.New("quota exceeded")
		}
		return []byte("png"), nil
	})

	out, err := ws.run(t, gen, "images")
	require.NoError(t, err)
	assert.Contains(t, out, "error push_knee: quota exceeded")
	assert.Contains(t, out, "Generated: 1, Skipped: 1, Errors: 1")
}

func TestImages_MissingAPIKey(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, nil, "images")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestImages_UnknownCategory(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, nil, "images", "--dry-run", "--category", "legs")
	require.Error(t, err)
}

func TestImages_ValidateRejectsCycle(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "pull.json", `[
  {"id": "a", "category": "pull", "progression_to": "b"},
  {"id": "b", "category": "pull", "progression_to": "a"}
]
`)

	_, err := ws.run(t, nil, "images", "--dry-run", "--validate")
	require.Error(t, err)
	var cycle *progression.CycleDetectedError
	assert.ErrorAs(t, err, &cycle)
}

func TestProgress(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, nil, "progress", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "Progression mapping OK")
	assert.NotContains(t, ws.read(t, "push.json"), `"progression_to": "push_standard"`)

	out, err = ws.run(t, nil, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "push.json")
	assert.Contains(t, out, "(1 with progression)")
	assert.Contains(t, out, "3 exercises annotated in 2 files (1 changed)")
	assert.Contains(t, ws.read(t, "push.json"), `"progression_to": "push_standard"`)
	assert.Equal(t, coreJSON, ws.read(t, "core.json"))
}

func TestProgress_DanglingAbortsWithoutWriting(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.dir, "chains.yaml"), []byte("push_knee: push_ghost\n"), 0o644))
	before := ws.read(t, "push.json")

	_, err := ws.run(t, nil, "progress")
	require.Error(t, err)
	var dangling *progression.DanglingReferenceError
	assert.ErrorAs(t, err, &dangling)
	assert.Equal(t, before, ws.read(t, "push.json"))
}

func TestChain(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, nil, "chain", "push_knee")
	require.NoError(t, err)
	assert.Equal(t, "push_knee -> push_standard\n", out)
}

func TestChain_AllRoots(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, nil, "chain")
	require.NoError(t, err)
	assert.Equal(t, "plank\npush_knee -> push_standard\n", out)
}

func TestPrompts(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, nil, "prompts", "--out", "-", "--category", "push")
	require.NoError(t, err)
	assert.Contains(t, out, "# 2 exercises")
	assert.Contains(t, out, "## push_knee  [push]")

	out, err = ws.run(t, nil, "prompts")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 prompts")
	assert.FileExists(t, filepath.Join(ws.dataDir, "image_prompts.txt"))

	// The catalog sits next to the collections without being loaded as one.
	_, err = ws.run(t, nil, "images", "--dry-run")
	require.NoError(t, err)
}

func TestDataDirFlagOverridesConfig(t *testing.T) {
	ws := newWorkspace(t)
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "core.json"), []byte(coreJSON), 0o644))

	out, err := ws.run(t, nil, "--data-dir="+other, "images", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated: 0, Skipped: 1, Errors: 0 (dry run)")
}
