package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
	"github.com/spherical/ocr-pipeline/pkg/extractor"
)

var runCmd = &cobra.Command{
	Use:   "run <batch-dir>",
	Short: "Run OCR over every document in a directory",
	Long: `Run rasterizes each PDF or image in <batch-dir>, recognizes every page with the
selected backend and writes <name>_results.md (and <name>_results.pdf unless
--no-render is given) to the output directory. A summary with per-stage
averages is printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("mode", "m", "", "backend mode (tiny, small, base, large, gundam)")
	runCmd.Flags().StringP("backend", "b", "", "OCR backend (tesseract, layout, vision)")
	runCmd.Flags().StringP("output", "o", "", "output directory")
	runCmd.Flags().Bool("no-render", false, "skip PDF re-rendering, write markdown only")
	runCmd.Flags().IntP("workers", "w", 0, "documents rasterized in parallel")
	runCmd.Flags().Bool("keep-pages", false, "keep page images next to the results")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cfg.InputDir = args[0]
	stringFlag(cmd, "mode", &cfg.Backend.Mode)
	stringFlag(cmd, "backend", &cfg.Backend.Kind)
	stringFlag(cmd, "output", &cfg.OutputDir)
	if noRender, _ := cmd.Flags().GetBool("no-render"); noRender {
		cfg.Render.Enabled = false
	}
	if cmd.Flags().Changed("workers") {
		cfg.Rasterize.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if keep, _ := cmd.Flags().GetBool("keep-pages"); keep {
		cfg.Rasterize.KeepPages = true
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Section("OCR Batch")
	ui.KeyValue("Input", cfg.InputDir)
	ui.KeyValue("Output", cfg.OutputDir)
	ui.KeyValue("Backend", cfg.Backend.Kind)
	ui.KeyValue("Mode", cfg.Backend.Mode)
	ui.Newline()

	spinner := ui.NewSpinner("Preparing backend...")
	spinner.Start()
	client, err := extractor.NewClient(ctx, cfg, extractor.WithLogger(logger))
	spinner.Stop()
	if err != nil {
		return err
	}
	defer client.Close()

	events := make(chan extractor.StreamEvent, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		trackProgress(events)
	}()

	summary, err := client.Run(ctx, events)
	close(events)
	<-done
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	return nil
}
