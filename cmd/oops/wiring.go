package main

import (
	"context"
	"fmt"
	"io"

	"oops/internal/assets"
	"oops/internal/assets/core"
	"oops/internal/assets/gcs"
	"oops/internal/assets/s3"
	"oops/internal/config"
	"oops/internal/imagegen"
	"oops/internal/progression"
	"oops/internal/prompt"
	"oops/internal/store"
)

// =============================================================================
// COMPONENT WIRING
// =============================================================================

func recordStore(cfg *config.Config) *store.FileStore {
	return store.NewFileStore(cfg.Paths.ExercisesDir, cfg.Paths.Auxiliary...)
}

func compositor(cfg *config.Config) (*prompt.Compositor, error) {
	style, err := prompt.LoadStyle(cfg.Paths.StyleFile)
	if err != nil {
		return nil, err
	}
	hints, err := prompt.LoadHints(cfg.Paths.HintsFile)
	if err != nil {
		return nil, err
	}
	return prompt.NewCompositor(style, hints), nil
}

func mapping(cfg *config.Config) (progression.Mapping, error) {
	if cfg.Paths.ProgressionFile == "" {
		return progression.DefaultMapping(), nil
	}
	return progression.LoadMapping(cfg.Paths.ProgressionFile)
}

func generatorOptions(cfg *config.Config) imagegen.Options {
	g := cfg.Generation
	return imagegen.Options{
		APIKey:      g.APIKey,
		Mode:        imagegen.Mode(g.Mode),
		Model:       g.Model,
		MIMEType:    g.MIMEType,
		AspectRatio: g.AspectRatio,
		SafetyLevel: g.SafetyLevel,
	}
}

func assetOptions(cfg *config.Config) assets.Options {
	a := cfg.Assets
	return assets.Options{
		Driver: core.Driver(a.Driver),
		Dir:    a.Dir,
		S3: s3.Config{
			Region:    a.S3.Region,
			Bucket:    a.S3.Bucket,
			Prefix:    a.S3.Prefix,
			Endpoint:  a.S3.Endpoint,
			PathStyle: a.S3.PathStyle,
		},
		GCS: gcs.Config{
			Bucket:      a.GCS.Bucket,
			Prefix:      a.GCS.Prefix,
			Credentials: a.GCS.Credentials,
		},
	}
}

// openAssets opens the configured backend. The returned release func closes
// backends that hold a client.
func openAssets(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	st, err := assets.Open(ctx, assetOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open asset store: %w", err)
	}
	release := func() {}
	if c, ok := st.(io.Closer); ok {
		release = func() { _ = c.Close() }
	}
	return st, release, nil
}
