// Package prompt composes the text prompt sent to the image service for an exercise.
// Composition is a pure function of the record, the style and the hint registry.
package prompt

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"oops/internal/exercise"
	"oops/internal/logging"
)

//go:embed defaults
var defaults embed.FS

// Style is the visual frame shared by every prompt.
type Style struct {
	Version  string `yaml:"version"`
	Preamble string `yaml:"preamble"`
	Closing  string `yaml:"closing"`
}

// HintRegistry maps an exercise id to a curated description of what the panels show.
type HintRegistry struct {
	hints map[string]string
}

// NewHintRegistry copies m. Blank hints are dropped so they fall back like missing ones.
func NewHintRegistry(m map[string]string) HintRegistry {
	hints := make(map[string]string, len(m))
	for id, text := range m {
		if strings.TrimSpace(text) != "" {
			hints[id] = text
		}
	}
	return HintRegistry{hints: hints}
}

// Lookup returns the hint for id.
func (h HintRegistry) Lookup(id string) (string, bool) {
	text, ok := h.hints[id]
	return text, ok
}

// Len returns the number of curated hints.
func (h HintRegistry) Len() int {
	return len(h.hints)
}

// ParseStyle decodes a style document. Version and preamble are required.
func ParseStyle(data []byte) (Style, error) {
	var s Style
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Style{}, fmt.Errorf("failed to parse style: %w", err)
	}
	if strings.TrimSpace(s.Version) == "" {
		return Style{}, fmt.Errorf("style has no version")
	}
	if strings.TrimSpace(s.Preamble) == "" {
		return Style{}, fmt.Errorf("style has no preamble")
	}
	return s, nil
}

// ParseHints decodes an `id: text` document.
func ParseHints(data []byte) (HintRegistry, error) {
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return HintRegistry{}, fmt.Errorf("failed to parse hints: %w", err)
	}
	return NewHintRegistry(m), nil
}

// LoadStyle reads a style file, or returns the embedded default when path is empty.
func LoadStyle(path string) (Style, error) {
	if path == "" {
		return DefaultStyle(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Style{}, fmt.Errorf("failed to read style: %w", err)
	}
	return ParseStyle(data)
}

// LoadHints reads a hints file, or returns the embedded default when path is empty.
func LoadHints(path string) (HintRegistry, error) {
	if path == "" {
		return DefaultHints(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return HintRegistry{}, fmt.Errorf("failed to read hints: %w", err)
	}
	return ParseHints(data)
}

// DefaultStyle returns the embedded comic-strip style.
func DefaultStyle() Style {
	s, err := ParseStyle(mustReadDefault("defaults/style.yaml"))
	if err != nil {
		panic(fmt.Sprintf("embedded style is invalid: %v", err))
	}
	return s
}

// DefaultHints returns the embedded hint registry.
func DefaultHints() HintRegistry {
	h, err := ParseHints(mustReadDefault("defaults/hints.yaml"))
	if err != nil {
		panic(fmt.Sprintf("embedded hints are invalid: %v", err))
	}
	return h
}

func mustReadDefault(name string) []byte {
	data, err := defaults.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded %s: %v", name, err))
	}
	return data
}

// =============================================================================
// COMPOSITION
// =============================================================================

// Composition is a composed prompt and whether it used a curated hint.
type Composition struct {
	Prompt   string
	HintUsed bool
}

// Compositor builds prompts from a fixed style and hint registry.
type Compositor struct {
	style Style
	hints HintRegistry
}

// NewCompositor binds a style and a hint registry.
func NewCompositor(style Style, hints HintRegistry) *Compositor {
	return &Compositor{style: style, hints: hints}
}

// Style returns the bound style.
func (c *Compositor) Style() Style {
	return c.style
}

// Compose returns the prompt for rec: preamble, identification, visual hint (or the
// instruction fallback) and closing, joined by single spaces.
func (c *Compositor) Compose(rec *exercise.Record) Composition {
	ident := fmt.Sprintf("Exercise: %s (%s / %s).", rec.DisplayName(), rec.Category, rec.MovementPattern)

	var detail string
	hint, ok := c.hints.Lookup(rec.ID)
	if ok {
		detail = "Visual: " + hint
	} else {
		detail = "Movement: " + rec.Instructions()
		logging.Get(logging.CategoryPrompt).Warn("No visual hint for %s, falling back to instructions", rec.ID)
	}

	return Composition{
		Prompt:   normalize(c.style.Preamble, ident, detail, c.style.Closing),
		HintUsed: ok,
	}
}

// normalize joins parts with single spaces and collapses any internal whitespace runs.
func normalize(parts ...string) string {
	var words []string
	for _, p := range parts {
		words = append(words, strings.Fields(p)...)
	}
	return strings.Join(words, " ")
}

// Fingerprint returns the hex sha256 of a prompt.
func Fingerprint(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
