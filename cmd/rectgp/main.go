package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thalesfsp/rectgp"
	"github.com/thalesfsp/rectgp/internal/config"
	"github.com/thalesfsp/rectgp/internal/experiment"
)

var (
	// Global flags
	configPath string
	verbose    bool
	quick      bool

	// generate flags
	previewPath  string
	previewCols  int
	previewScale int
	sampleCount  int

	// compare flags
	reportPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rectgp",
	Short: "Synthetic rectangles dataset and kernel classifier comparison",
	Long: `rectgp generates images of hollow rectangles labeled tall (1) or wide (0)
and compares a squared-exponential kernel classifier with a convolutional one
on them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if quick {
			cfg.ApplyQuick()
		}

		logger, err = cfg.Logging.Build(verbose)

		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// generateCmd writes a dataset summary and an optional preview
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a rectangles dataset and describe it",
	Long: `Generates --count samples with the configured canvas size and seed,
prints a summary and optionally writes a PNG contact sheet.

Example:
  rectgp generate --count 64 --preview samples.png`,
	RunE: runGenerate,
}

// compareCmd runs the two-kernel experiment
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Fit and evaluate the squared-exponential and convolutional classifiers",
	RunE:  runCompare,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rectgp.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&quick, "quick", false, "Use the small smoke-test sample counts and iteration budget")

	generateCmd.Flags().IntVarP(&sampleCount, "count", "n", 0, "Number of samples (default: dataset.train_count)")
	generateCmd.Flags().StringVar(&previewPath, "preview", "", "Write a PNG contact sheet to this path")
	generateCmd.Flags().IntVar(&previewCols, "cols", 10, "Canvases per preview row")
	generateCmd.Flags().IntVar(&previewScale, "scale", 8, "Preview upscaling factor")

	compareCmd.Flags().StringVar(&reportPath, "report", "", "Write the YAML report to this path")

	rootCmd.AddCommand(generateCmd, compareCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	n := sampleCount
	if n == 0 {
		n = cfg.Dataset.TrainCount
	}

	policy, ok := rectgp.ParseExhaustionPolicy(cfg.Dataset.Exhaustion)
	if !ok {
		return fmt.Errorf("unknown exhaustion policy %q", cfg.Dataset.Exhaustion)
	}

	gen, err := rectgp.NewGenerator(rectgp.GeneratorConfig{
		Width:       cfg.Dataset.Width,
		Height:      cfg.Dataset.Height,
		MaxAttempts: cfg.Dataset.MaxAttempts,
		Exhaustion:  policy,
		Seed:        cfg.Dataset.Seed,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ds, err := gen.GenerateDataset(n)
	if err != nil {
		return err
	}

	rows, cols := ds.Shape()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Samples:   %d\n", rows)
	fmt.Fprintf(out, "Features:  %d (%dx%d)\n", cols, ds.Width, ds.Height)
	fmt.Fprintf(out, "Tall:      %.1f%%\n", 100*ds.Balance())
	fmt.Fprintf(out, "Attempts:  %d\n", ds.Attempts)
	fmt.Fprintf(out, "Exhausted: %d\n", len(ds.Exhausted))

	if previewPath == "" {
		return nil
	}

	err = writeFile(previewPath, func(w io.Writer) error {
		return ds.WritePreview(w, previewCols, previewScale)
	})
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}

	logger.Info("preview written", zap.String("path", previewPath))

	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := experiment.Run(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := report.Summary(cmd.OutOrStdout()); err != nil {
		return err
	}

	if reportPath == "" {
		return nil
	}

	if err := writeFile(reportPath, report.WriteYAML); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	logger.Info("report written", zap.String("path", reportPath), zap.String("run_id", report.ID))

	return nil
}

// writeFile creates path, hands it to write and closes it. A failed close is
// reported since it may mean buffered data never reached the disk.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		_ = f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
