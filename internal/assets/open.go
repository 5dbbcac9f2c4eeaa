// Package assets selects and constructs the storage backend for generated images.
package assets

import (
	"context"
	"fmt"

	"oops/internal/assets/core"
	"oops/internal/assets/fs"
	"oops/internal/assets/gcs"
	"oops/internal/assets/memory"
	"oops/internal/assets/s3"
	"oops/internal/logging"
)

// Options carries backend settings; only the section for the chosen driver is read.
type Options struct {
	Driver core.Driver
	Dir    string
	S3     s3.Config
	GCS    gcs.Config
}

// Open builds the configured store. An empty driver means the local filesystem.
func Open(ctx context.Context, opts Options) (core.Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = core.DriverFilesystem
	}
	log := logging.Get(logging.CategoryAssets)

	switch driver {
	case core.DriverFilesystem:
		log.Info("Asset store: fs dir=%s", opts.Dir)
		return fs.New(opts.Dir)
	case core.DriverS3:
		log.Info("Asset store: s3 bucket=%s prefix=%s", opts.S3.Bucket, opts.S3.Prefix)
		return s3.New(ctx, opts.S3)
	case core.DriverGCS:
		log.Info("Asset store: gcs bucket=%s prefix=%s", opts.GCS.Bucket, opts.GCS.Prefix)
		return gcs.New(ctx, opts.GCS)
	case core.DriverMemory:
		log.Info("Asset store: memory")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown asset driver %q", driver)
	}
}
