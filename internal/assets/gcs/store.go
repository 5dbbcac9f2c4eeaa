// Package gcs implements core.Store on a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"oops/internal/assets/core"
)

// Store maps keys to objects under an optional prefix in a single bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// Config holds construction parameters.
type Config struct {
	Bucket string
	Prefix string
	// CredentialsFile or inline JSON; falls back to GOOGLE_APPLICATION_CREDENTIALS(_JSON)
	// and then application default credentials.
	Credentials string
}

// New creates a GCS asset store. Extra client options are appended (tests use an
// endpoint override).
func New(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	opts := credentialOptions(cfg.Credentials)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	opts = append(opts, extra...)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func credentialOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	}
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (s *Store) Driver() core.Driver { return core.DriverGCS }

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) object(key string) (*storage.ObjectHandle, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, err
	}
	name := key
	if s.prefix != "" {
		name = path.Join(s.prefix, key)
	}
	return s.client.Bucket(s.bucket).Object(name), nil
}

// Exists fetches the object attributes.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	obj, err := s.object(key)
	if err != nil {
		return core.Info{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("gcs attrs %s: %w", obj.ObjectName(), err)
	}
	return core.Info{
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		Metadata:     attrs.Metadata,
		LastModified: attrs.Updated.UTC(),
	}, nil
}

// Put uploads the object, replacing any existing version.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	obj, err := s.object(key)
	if err != nil {
		return core.Info{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	if w.ContentType == "" {
		w.ContentType = core.ContentTypeForKey(key)
	}
	w.Metadata = core.CloneMetadata(opts.Metadata)

	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return core.Info{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return core.Info{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return core.Info{
		Key:          key,
		Size:         size,
		ContentType:  w.ContentType,
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}, nil
}
