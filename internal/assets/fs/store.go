// Package fs implements core.Store over a flat local directory, the layout a static
// web server publishes directly.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"oops/internal/assets/core"
)

// Store keeps each asset as <root>/<key>. Metadata lives in a hidden sidecar
// (.<key>.meta) so the published directory only shows the images.
type Store struct {
	root string
}

// New returns a filesystem store rooted at root, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("fs asset store: root directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fs asset store: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory assets are written to.
func (s *Store) Root() string { return s.root }

func (s *Store) paths(key string) (dataPath, metaPath string, err error) {
	if err := core.ValidateKey(key); err != nil {
		return "", "", err
	}
	return filepath.Join(s.root, key), filepath.Join(s.root, "."+key+".meta"), nil
}

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Size        int64             `json:"size"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Exists reports whether the asset file is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	dataPath, _, err := s.paths(key)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Mode().IsRegular(), nil
}

// Head returns size, mtime and any sidecar metadata.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	st, err := os.Stat(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Info{}, err
	}
	info := core.Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC(), ContentType: core.ContentTypeForKey(key)}

	// Assets dropped in by hand have no sidecar.
	if b, err := os.ReadFile(metaPath); err == nil {
		var mf metaFile
		if json.Unmarshal(b, &mf) == nil {
			if mf.ContentType != "" {
				info.ContentType = mf.ContentType
			}
			info.Metadata = mf.Metadata
		}
	}
	return info, nil
}

// Put writes the asset atomically, replacing any previous version.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}

	size, err := writeAtomic(dataPath, r)
	if err != nil {
		return core.Info{}, fmt.Errorf("write asset %s: %w", key, err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = core.ContentTypeForKey(key)
	}
	now := time.Now().UTC()
	mf := metaFile{ContentType: contentType, Metadata: core.CloneMetadata(opts.Metadata), Size: size, UpdatedAt: now}
	mb, err := json.Marshal(mf)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := writeAtomic(metaPath, bytes.NewReader(mb)); err != nil {
		return core.Info{}, fmt.Errorf("write asset metadata %s: %w", key, err)
	}

	return core.Info{Key: key, Size: size, ContentType: contentType, Metadata: core.CloneMetadata(opts.Metadata), LastModified: now}, nil
}

// writeAtomic streams r into a temp file beside path and renames it into place.
func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, err
	}
	return size, nil
}
