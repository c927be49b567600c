package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/metrics"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/status"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/worker"
	"github.com/tabletop-tools/sessionscribe/pkg/logger"
)

// newRunFileCmd is the hidden worker-process entry point used by batch.
// It runs one file's pipeline, publishes status into the shared status
// directory and converts any failure into a non-zero exit so nothing
// crosses the process boundary unhandled.
func newRunFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "run-file <audio-file>",
		Short:  "Process a single file as a batch worker",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE:   runFile,
	}
	cmd.Flags().String("output-dir", "", "output directory for this track")
	cmd.Flags().String("status-dir", "", "shared status directory")
	cmd.Flags().String("status-key", "", "status registry key for this track")
	_ = cmd.MarkFlagRequired("output-dir")
	_ = cmd.MarkFlagRequired("status-dir")
	_ = cmd.MarkFlagRequired("status-key")
	return cmd
}

func runFile(cmd *cobra.Command, args []string) error {
	input := args[0]
	outputDir, _ := cmd.Flags().GetString("output-dir")
	statusDir, _ := cmd.Flags().GetString("status-dir")
	statusKey, _ := cmd.Flags().GetString("status-key")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Batch workers stay in the background: lower priority, log to the
	// rotating file only, keep stdout silent for the orchestrator.
	_ = worker.LowerPriority()
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(outputDir, "worker.log")
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: logFile})
	if err != nil {
		return err
	}

	registry, err := status.NewDirRegistry(statusDir)
	if err != nil {
		return err
	}
	pub := status.NewPublisher(registry, statusKey)

	runner := buildRunner(cfg, log)
	if _, err := runner.Run(context.Background(), input, outputDir, pub); err != nil {
		// The terminal status already carries the message; the stderr
		// line feeds the supervisor's failure tail.
		return fmt.Errorf("%s: %w", statusKey, err)
	}
	if err := metrics.WriteTextfile(filepath.Join(outputDir, "metrics.prom")); err != nil {
		log.Warn("metrics write failed", "error", err)
	}
	return nil
}
