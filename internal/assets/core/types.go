// Package core defines the asset storage abstraction shared by every backend.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Driver identifies a concrete storage backend.
type Driver string

const (
	// DriverFilesystem writes assets into a flat local directory (default).
	DriverFilesystem Driver = "fs"
	// DriverS3 targets an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverGCS targets a Google Cloud Storage bucket.
	DriverGCS Driver = "gcs"
	// DriverMemory keeps assets in process memory (tests, dry runs).
	DriverMemory Driver = "memory"
)

// Metadata keys stamped on generated assets.
const (
	MetaPromptSHA256 = "prompt_sha256"
	MetaStyleVersion = "style_version"
	MetaRunID        = "run_id"
)

var (
	// ErrNotFound is returned by Head for a missing key.
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidKey is returned for keys that are empty or not a flat file name.
	ErrInvalidKey = errors.New("invalid asset key")
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored asset.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}

// Store is a flat key -> bytes namespace. Put replaces any existing object.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Head(ctx context.Context, key string) (Info, error)
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Driver() Driver
}

// ValidateKey accepts a single path segment such as "push_knee.png".
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case strings.ContainsAny(key, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	case key == "." || key == ".." || strings.HasPrefix(key, "."):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// CloneMetadata returns a copy of md, or nil when empty.
func CloneMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// ContentTypeForKey guesses a MIME type from the key extension.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(key)
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
