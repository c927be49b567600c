package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/metrics"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/pipeline"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/status"
	"github.com/tabletop-tools/sessionscribe/pkg/logger"
)

func newSingleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "single <audio-file>",
		Short: "Transcribe one audio file in-process with verbose output",
		Args:  cobra.ExactArgs(1),
		RunE:  runSingle,
	}
	cmd.Flags().String("output", "", "output directory (default next to the input)")
	cmd.Flags().Bool("keep-segments", false, "keep extracted segment files after the run")
	return cmd
}

func runSingle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	input := args[0]

	outputDir, _ := cmd.Flags().GetString("output")
	if outputDir == "" {
		root := cfg.Paths.OutputRoot
		if root == "" {
			root = filepath.Join(filepath.Dir(input), "output")
		}
		outputDir = pipeline.OutputDir(input, filepath.Dir(input), root)
	}

	// Single runs are interactive: log straight to the terminal.
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	keep, _ := cmd.Flags().GetBool("keep-segments")
	runner := buildRunner(cfg, log)
	runner.KeepSegments = keep

	pub := status.NewPublisher(status.NewMemoryRegistry(), filepath.Base(input))
	res, err := runner.Run(ctx, input, outputDir, pub)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}

	if err := metrics.WriteTextfile(filepath.Join(outputDir, "metrics.prom")); err != nil {
		log.Warn("metrics write failed", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "caption file: %s\n", res.CaptionFile)
	fmt.Fprintf(cmd.OutOrStdout(), "manifest: %s\n", res.ManifestFile)
	if res.Failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %d of %d segments skipped\n", res.Failed, res.Segments)
	}
	return nil
}
