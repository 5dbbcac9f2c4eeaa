package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"oops/internal/assets/core"
	"oops/internal/config"
	"oops/internal/logging"
	"oops/internal/metrics"
	"oops/internal/pipeline"
	"oops/internal/progression"
	"oops/internal/store"
)

// =============================================================================
// IMAGES COMMAND
// =============================================================================

type imagesOptions struct {
	category string
	dryRun   bool
	force    bool
	only     []string
	validate bool
}

func newImagesCmd(ro *rootOptions) *cobra.Command {
	opts := &imagesOptions{}

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Generate missing exercise illustrations",
		Long: `Generates one illustration per exercise that has no image_url yet, stores it
in the configured asset backend and stamps the public path into the record.

Records whose asset already exists in storage are re-linked without a service
call. Per-record failures are reported and do not stop the batch.

Examples:
  oops images --dry-run                 # Show prompts, touch nothing
  oops images --category push           # Only push.json
  oops images --only plank,push_knee    # Regenerate two exercises
  oops images --force --validate        # Regenerate everything after a graph check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImages(cmd.Context(), cmd.OutOrStdout(), ro, opts)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "Restrict to one category (file stem)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Compose prompts without calling the service or writing anything")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Regenerate even when image_url is set")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "Regenerate these ids (comma separated)")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Validate persisted progression chains before generating")

	return cmd
}

func runImages(ctx context.Context, w io.Writer, ro *rootOptions, opts *imagesOptions) error {
	cfg := ro.cfg
	if err := cfg.Validate(opts.dryRun); err != nil {
		return err
	}
	log := logging.Get(logging.CategoryBoot)

	records := recordStore(cfg)
	if opts.validate {
		if err := validatePersisted(ctx, w, records); err != nil {
			return err
		}
	}

	comp, err := compositor(cfg)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Records:    records,
		Compositor: comp,
		Metrics:    metrics.NewBatch(),
	}

	if !opts.dryRun || assetsReadable(cfg) {
		st, release, err := openAssets(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()
		deps.Assets = st
	}

	if !opts.dryRun {
		gen, err := ro.newGenerator(ctx, generatorOptions(cfg))
		if err != nil {
			return fmt.Errorf("create generator: %w", err)
		}
		deps.Generator = gen
	}

	orch, err := pipeline.New(deps, pipelineOptions(cfg, opts))
	if err != nil {
		return err
	}

	summary, runErr := orch.Run(ctx)
	if summary != nil {
		printSummary(w, summary)
	}

	if path := cfg.Metrics.TextfilePath; path != "" && !opts.dryRun {
		if err := deps.Metrics.WriteTextfile(path); err != nil {
			log.Warn("Metrics export failed: %v", err)
		}
	}

	return runErr
}

func pipelineOptions(cfg *config.Config, opts *imagesOptions) pipeline.Options {
	g := cfg.Generation
	return pipeline.Options{
		Category:       opts.category,
		DryRun:         opts.dryRun,
		Force:          opts.force,
		Only:           opts.only,
		URLPrefix:      cfg.Assets.URLPrefix,
		Ext:            g.Extension,
		Delay:          g.GetDelay(),
		FailureBackoff: g.FailureBackoff,
		Concurrency:    g.Concurrency,
		RateLimit:      g.RateLimit,
		Timeout:        g.GetTimeout(),
	}
}

// assetsReadable decides whether a dry run may consult storage for existing assets.
// A missing local directory is left alone instead of being created.
func assetsReadable(cfg *config.Config) bool {
	switch core.Driver(cfg.Assets.Driver) {
	case "", core.DriverFilesystem:
		info, err := os.Stat(cfg.Assets.Dir)
		return err == nil && info.IsDir()
	case core.DriverMemory:
		return false
	default:
		return true
	}
}

// validatePersisted checks the chains already stored in the records.
func validatePersisted(ctx context.Context, w io.Writer, records *store.FileStore) error {
	entries, err := records.Load(ctx, "")
	if err != nil {
		return err
	}
	report := progression.NewGraph(progression.FromEntries(entries)).Validate(entries)
	if err := report.Err(); err != nil {
		return fmt.Errorf("progression chains invalid: %w", err)
	}
	fmt.Fprintf(w, "Progression chains OK (%d exercises)\n", len(entries))
	return nil
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	if s.DryRun {
		for _, o := range s.Outcomes {
			if o.Prompt == "" {
				continue
			}
			fmt.Fprintf(w, "[%s] %s -> %s\n  %s\n\n", o.Category, o.ID, o.ImageURL, o.Prompt)
		}
	}
	for _, re := range s.Errors {
		fmt.Fprintf(w, "  error %s: %v\n", re.ID, re.Err)
	}

	var extra []string
	if s.Healed > 0 {
		extra = append(extra, fmt.Sprintf("healed %d", s.Healed))
	}
	if s.Pending > 0 {
		extra = append(extra, fmt.Sprintf("not processed %d", s.Pending))
	}
	if s.DryRun {
		extra = append(extra, "dry run")
	}
	line := s.String()
	if len(extra) > 0 {
		line += " (" + strings.Join(extra, ", ") + ")"
	}
	fmt.Fprintln(w, line)

	for _, r := range s.Written {
		fmt.Fprintf(w, "  saved %s (%d records)\n", r.Path, r.Records)
	}
}
