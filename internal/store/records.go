// Package store implements the per-category record collections. The files are the
// store: each category lives in <dir>/<category>.json as a JSON array, loaded in full
// at the start of a run and rewritten in full at the end.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"oops/internal/exercise"
	"oops/internal/logging"
)

// SourceExt is the extension of record collection files.
const SourceExt = ".json"

// DefaultAuxiliary lists files that live next to the collections but hold no records.
var DefaultAuxiliary = []string{"LICENSE", "image_prompts.txt"}

// FileStore loads and rewrites the record collections under one directory.
type FileStore struct {
	dir       string
	auxiliary map[string]bool

	mu     sync.Mutex
	loaded map[string]loadedFile
}

// loadedFile is what WriteBack needs to know about a collection as it was read.
type loadedFile struct {
	records         int
	trailingNewline bool
}

// FileReport summarizes one rewritten collection.
type FileReport struct {
	Path     string
	Category exercise.Category
	Records  int
}

// NewFileStore returns a store rooted at dir. auxiliary names are skipped on load
// in addition to any file without the .json extension.
func NewFileStore(dir string, auxiliary ...string) *FileStore {
	aux := make(map[string]bool, len(auxiliary))
	for _, name := range auxiliary {
		aux[name] = true
	}
	return &FileStore{
		dir:       dir,
		auxiliary: aux,
		loaded:    make(map[string]loadedFile),
	}
}

// Dir returns the collection directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Sources lists collection files in sorted order, optionally restricted to one category.
func (s *FileStore) Sources(categoryFilter string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read exercises directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || s.auxiliary[name] || !strings.HasSuffix(name, SourceExt) {
			continue
		}
		if categoryFilter != "" && strings.TrimSuffix(name, SourceExt) != categoryFilter {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	sort.Strings(paths)

	if categoryFilter != "" && len(paths) == 0 {
		return nil, fmt.Errorf("%w %q in %s", ErrUnknownCategory, categoryFilter, s.dir)
	}
	return paths, nil
}

// Load reads every collection (or the one matching categoryFilter) into a single
// working set in file order, then record order. Any malformed file or duplicated id
// fails the whole load.
func (s *FileStore) Load(ctx context.Context, categoryFilter string) ([]*exercise.Entry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "FileStore.Load")
	defer timer.Stop()

	paths, err := s.Sources(categoryFilter)
	if err != nil {
		return nil, err
	}

	var all []*exercise.Entry
	seen := make(map[string]string)
	files := make(map[string]loadedFile, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, trailingNewline, err := readCollection(path)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if first, dup := seen[e.ID()]; dup {
				return nil, &DuplicateIDError{ID: e.ID(), First: first, Second: path}
			}
			seen[e.ID()] = path
		}

		if c := categoryOf(path); !c.IsKnown() {
			logging.Get(logging.CategoryStore).Warn("Collection %s has unknown category %q (known: %v)",
				path, c, exercise.KnownCategories())
		}

		files[path] = loadedFile{records: len(entries), trailingNewline: trailingNewline}
		all = append(all, entries...)
		logging.Get(logging.CategoryStore).Debug("Loaded %d records from %s", len(entries), path)
	}

	s.mu.Lock()
	for path, f := range files {
		s.loaded[path] = f
	}
	s.mu.Unlock()

	logging.Get(logging.CategoryStore).Info("Loaded %d records from %d collections", len(all), len(paths))
	return all, nil
}

// readCollection decodes one collection and reports whether the file ended with a
// newline.
func readCollection(path string) ([]*exercise.Entry, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, false, &MalformedSourceError{Path: path, Index: -1, Reason: "not a JSON array of records", Err: err}
	}
	if raws == nil {
		// literal null
		return nil, false, &MalformedSourceError{Path: path, Index: -1, Reason: "not a JSON array of records"}
	}

	category := categoryOf(path)
	entries := make([]*exercise.Entry, 0, len(raws))
	for i, raw := range raws {
		rec, err := exercise.Decode(raw)
		if err != nil {
			return nil, false, &MalformedSourceError{Path: path, Index: i, Reason: "invalid record", Err: err}
		}
		entries = append(entries, &exercise.Entry{
			Record: rec,
			Provenance: exercise.Provenance{
				Path:     path,
				Category: category,
				Index:    i,
			},
		})
	}
	return entries, bytes.HasSuffix(data, []byte("\n")), nil
}

// categoryOf derives a collection's category from its file stem.
func categoryOf(path string) exercise.Category {
	return exercise.Category(strings.TrimSuffix(filepath.Base(path), SourceExt))
}

// WriteBack regroups entries by source file, restores each file's load order and
// atomically rewrites the file. Every record loaded from a file must be present in
// the group written back for it. A file read without a final newline is written
// back without one.
func (s *FileStore) WriteBack(ctx context.Context, entries []*exercise.Entry) ([]FileReport, error) {
	timer := logging.StartTimer(logging.CategoryStore, "FileStore.WriteBack")
	defer timer.Stop()

	groups := make(map[string][]*exercise.Entry)
	var order []string
	for _, e := range entries {
		path := e.Provenance.Path
		if path == "" {
			return nil, fmt.Errorf("record %q has no provenance", e.ID())
		}
		if _, ok := groups[path]; !ok {
			order = append(order, path)
		}
		groups[path] = append(groups[path], e)
	}
	sort.Strings(order)

	// Check every group before touching any file.
	loaded := make(map[string]loadedFile, len(order))
	s.mu.Lock()
	for _, path := range order {
		f, ok := s.loaded[path]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("refusing to rewrite %s: not loaded by this store", path)
		}
		if err := checkGroup(path, f.records, groups[path]); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		loaded[path] = f
	}
	s.mu.Unlock()

	reports := make([]FileReport, 0, len(order))
	for _, path := range order {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		group := groups[path]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Provenance.Index < group[j].Provenance.Index
		})

		records := make([]*exercise.Record, len(group))
		for i, e := range group {
			records[i] = e.Record
		}

		data, err := Encode(records)
		if err != nil {
			return reports, fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if !loaded[path].trailingNewline {
			data = bytes.TrimSuffix(data, []byte("\n"))
		}
		if err := writeFileAtomic(path, data); err != nil {
			return reports, err
		}

		reports = append(reports, FileReport{Path: path, Category: group[0].Provenance.Category, Records: len(group)})
		logging.Get(logging.CategoryStore).Info("Saved %s (%d records)", path, len(group))
	}
	return reports, nil
}

func checkGroup(path string, loaded int, group []*exercise.Entry) error {
	if len(group) != loaded {
		return &IncompleteWriteBackError{Path: path, Loaded: loaded, Provided: len(group)}
	}
	seen := make([]bool, loaded)
	for _, e := range group {
		idx := e.Provenance.Index
		if idx < 0 || idx >= loaded || seen[idx] {
			return &IncompleteWriteBackError{Path: path, Loaded: loaded, Provided: len(group)}
		}
		seen[idx] = true
	}
	return nil
}
