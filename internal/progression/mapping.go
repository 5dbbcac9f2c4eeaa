// Package progression holds the curated difficulty-progression mapping, validates it
// against a loaded working set and applies it to records.
package progression

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"oops/internal/exercise"
)

//go:embed chains.yaml
var defaultChains []byte

// Mapping is an immutable id -> successor table. An empty successor is a terminal node.
type Mapping struct {
	next map[string]string
	ids  []string // sorted keys
}

// NewMapping copies m into a Mapping. "" values mean "no successor".
func NewMapping(m map[string]string) Mapping {
	next := make(map[string]string, len(m))
	ids := make([]string, 0, len(m))
	for id, to := range m {
		next[id] = to
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Mapping{next: next, ids: ids}
}

// ParseMapping decodes a YAML document of `id: successor` pairs; null ends a chain.
func ParseMapping(data []byte) (Mapping, error) {
	var raw map[string]*string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Mapping{}, fmt.Errorf("failed to parse progression mapping: %w", err)
	}
	m := make(map[string]string, len(raw))
	for id, to := range raw {
		if id == "" {
			return Mapping{}, fmt.Errorf("progression mapping has an empty id")
		}
		if to != nil {
			m[id] = *to
		} else {
			m[id] = ""
		}
	}
	return NewMapping(m), nil
}

// LoadMapping reads a YAML mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to read progression mapping: %w", err)
	}
	return ParseMapping(data)
}

// DefaultMapping returns the curated chains baked into the binary.
func DefaultMapping() Mapping {
	m, err := ParseMapping(defaultChains)
	if err != nil {
		panic(fmt.Sprintf("embedded progression mapping is invalid: %v", err))
	}
	return m
}

// FromEntries builds a mapping from the progression_to values records already carry,
// so persisted data can be validated with the same rules as the curated table.
func FromEntries(entries []*exercise.Entry) Mapping {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.ID()] = e.Record.ProgressionTo()
	}
	return NewMapping(m)
}

// Len returns the number of mapped ids.
func (m Mapping) Len() int {
	return len(m.ids)
}

// Lookup returns the successor for id and whether id is mapped at all.
func (m Mapping) Lookup(id string) (string, bool) {
	to, ok := m.next[id]
	return to, ok
}
