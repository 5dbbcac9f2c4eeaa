// Package main implements the oops CLI: the exercise content pipeline that links
// progression chains and generates illustrations for the exercise collections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"oops/internal/config"
	"oops/internal/imagegen"
	"oops/internal/logging"
)

// rootOptions holds global flags and the configuration resolved from them.
type rootOptions struct {
	configPath string
	dataDir    string
	verbose    bool
	logFormat  string

	cfg *config.Config

	// newGenerator builds the service client; replaced in tests.
	newGenerator func(ctx context.Context, opts imagegen.Options) (imagegen.Generator, error)
}

func defaultGenerator(ctx context.Context, opts imagegen.Options) (imagegen.Generator, error) {
	return imagegen.NewGenAI(ctx, opts)
}

// newRootCmd builds the command tree wired to the real service client.
func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{newGenerator: defaultGenerator})
}

func newRootCmdWith(ro *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oops",
		Short: "oops - exercise content pipeline",
		Long: `oops maintains the bodyweight exercise collections of the web app.

It links exercises into difficulty progression chains and generates one
comic-strip illustration per exercise through the Gemini image models,
stamping the public image path back into the records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ro.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ro.configPath, "config", "c", "oops.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVarP(&ro.dataDir, "data-dir", "d", "", "Exercise collections directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ro.logFormat, "log-format", "", "Log format: json or console (overrides config)")

	rootCmd.AddCommand(newImagesCmd(ro))
	rootCmd.AddCommand(newProgressCmd(ro))
	rootCmd.AddCommand(newChainCmd(ro))
	rootCmd.AddCommand(newPromptsCmd(ro))

	return rootCmd
}

// setup loads configuration, applies flag overrides and initializes logging.
func (ro *rootOptions) setup() error {
	cfg, err := config.Load(ro.configPath)
	if err != nil {
		return err
	}
	if ro.dataDir != "" {
		cfg.Paths.ExercisesDir = ro.dataDir
	}
	if ro.logFormat != "" {
		cfg.Logging.Format = ro.logFormat
	}
	if ro.verbose {
		cfg.Logging.Level = "debug"
	}
	ro.cfg = cfg

	if err := logging.Initialize(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logging.Get(logging.CategoryBoot).Debug("Config loaded from %s (data_dir=%s driver=%s)",
		ro.configPath, cfg.Paths.ExercisesDir, cfg.Assets.Driver)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logging.CloseAll()
		os.Exit(1)
	}
	logging.CloseAll()
}
