package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"oops/internal/prompt"
)

// =============================================================================
// PROMPTS COMMAND
// =============================================================================

func newPromptsCmd(ro *rootOptions) *cobra.Command {
	var category, out string

	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Write the image prompt catalog",
		Long: `Writes one composed prompt per exercise to a text catalog, for use with
chat-based image tools. Defaults to image_prompts.txt inside the exercises
directory; pass --out - to print to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ro.cfg
			comp, err := compositor(cfg)
			if err != nil {
				return err
			}
			entries, err := recordStore(cfg).Load(cmd.Context(), category)
			if err != nil {
				return err
			}

			if out == "-" {
				_, err := comp.WriteCatalog(cmd.OutOrStdout(), entries)
				return err
			}

			path := out
			if path == "" {
				path = filepath.Join(cfg.Paths.ExercisesDir, prompt.CatalogFile)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create catalog: %w", err)
			}
			fallbacks, err := comp.WriteCatalog(f, entries)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d prompts to %s (%d without visual hint)\n", len(entries), path, fallbacks)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Restrict to one category (file stem)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout")

	return cmd
}
