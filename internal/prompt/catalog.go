package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"oops/internal/exercise"
)

// CatalogFile is the catalog's conventional name inside the exercises directory.
const CatalogFile = "image_prompts.txt"

var (
	catalogRule    = strings.Repeat("=", 80)
	catalogDivider = strings.Repeat("-", 80)
)

// WriteCatalog writes a human-readable prompt per exercise, for pasting into chat-based
// image tools. Returns how many prompts fell back to instructions.
func (c *Compositor) WriteCatalog(w io.Writer, entries []*exercise.Entry) (int, error) {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# OOPS - Exercise Image Prompts\n")
	fmt.Fprintf(bw, "# %d exercises | 3-panel comic strip | non-gendered figure | style %s\n", len(entries), c.style.Version)
	fmt.Fprintf(bw, "# Paste each prompt into an image tool\n")
	fmt.Fprintf(bw, "# Request landscape / wide format (3:1 ratio)\n")
	fmt.Fprintf(bw, "%s\n\n", catalogRule)

	fallbacks := 0
	for _, e := range entries {
		rec := e.Record
		comp := c.Compose(rec)
		if !comp.HintUsed {
			fallbacks++
		}
		fmt.Fprintf(bw, "## %s  [%s]\n", rec.ID, rec.Category)
		fmt.Fprintf(bw, "# %s / %s\n\n", rec.NameFR, rec.NameEN)
		fmt.Fprintf(bw, "%s\n\n%s\n\n", comp.Prompt, catalogDivider)
	}

	if err := bw.Flush(); err != nil {
		return fallbacks, fmt.Errorf("failed to write prompt catalog: %w", err)
	}
	return fallbacks, nil
}
