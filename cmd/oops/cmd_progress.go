package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"oops/internal/exercise"
	"oops/internal/progression"
)

// =============================================================================
// PROGRESSION COMMANDS
// =============================================================================

func newProgressCmd(ro *rootOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Apply the curated progression chains to every collection",
		Long: `Validates the curated progression mapping against all exercise collections,
then sets progression_to on every record (null for exercises outside a chain)
and rewrites the collections.

Dangling successors and cycles abort without writing anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(cmd.Context(), cmd.OutOrStdout(), ro, check)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Validate only, do not rewrite collections")

	return cmd
}

func runProgress(ctx context.Context, w io.Writer, ro *rootOptions, check bool) error {
	cfg := ro.cfg
	m, err := mapping(cfg)
	if err != nil {
		return err
	}

	records := recordStore(cfg)
	entries, err := records.Load(ctx, "")
	if err != nil {
		return err
	}

	graph := progression.NewGraph(m)
	report := graph.Validate(entries)
	for _, u := range report.UnknownSourceIDs {
		fmt.Fprintf(w, "  warning: %v\n", u)
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("progression mapping invalid: %w", err)
	}
	if check {
		fmt.Fprintf(w, "Progression mapping OK (%d chained ids, %d exercises)\n", m.Len(), len(entries))
		return nil
	}

	changed, err := graph.Apply(entries)
	if err != nil {
		return err
	}

	written, err := records.WriteBack(ctx, entries)
	if err != nil {
		return err
	}

	annotated := make(map[exercise.Category]int)
	for _, e := range entries {
		if e.Record.ProgressionTo() != "" {
			annotated[e.Provenance.Category]++
		}
	}
	total := 0
	for _, r := range written {
		fmt.Fprintf(w, "  %-20s %3d ex  (%d with progression)\n",
			filepath.Base(r.Path), r.Records, annotated[r.Category])
		total += r.Records
	}
	fmt.Fprintf(w, "\n%d exercises annotated in %d files (%d changed)\n", total, len(written), changed)
	return nil
}

func newChainCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chain [id]",
		Short: "Print the progression chain starting at an exercise",
		Long: `Prints the chain starting at id. Without an id, prints every chain of the
mapping, one per line, starting from each exercise nothing progresses into.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mapping(ro.cfg)
			if err != nil {
				return err
			}
			graph := progression.NewGraph(m)

			starts := args
			if len(starts) == 0 {
				starts = graph.Roots()
			}
			for _, id := range starts {
				chain, err := graph.Chain(id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(chain, " -> "))
			}
			return nil
		},
	}
}
