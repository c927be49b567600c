package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/combine"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/config"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/discover"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/metrics"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/pipeline"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/progress"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/status"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/worker"
	"github.com/tabletop-tools/sessionscribe/pkg/logger"
)

const pollInterval = 200 * time.Millisecond

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Transcribe every audio track in a directory and combine the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().Int("workers", 0, "parallel worker processes (overrides config)")
	cmd.Flags().String("output", "", "output root directory (default <dir>/output)")
	cmd.Flags().String("session", "", "session label used for the combined transcript name")
	cmd.Flags().Bool("no-combine", false, "skip the combine step after transcription")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Workers = n
	}

	inputDir := args[0]
	outputRoot, _ := cmd.Flags().GetString("output")
	if outputRoot == "" {
		outputRoot = cfg.Paths.OutputRoot
	}
	if outputRoot == "" {
		outputRoot = filepath.Join(inputDir, "output")
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	// The progress table owns the terminal; the run log goes to a file.
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(outputRoot, "sessionscribe.log")
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: logFile})
	if err != nil {
		return err
	}

	files, err := discover.AudioFiles(inputDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no audio files found in %s", inputDir)
	}
	log.Info("batch starting", "dir", inputDir, "files", len(files), "workers", cfg.Workers)

	statusDir, err := os.MkdirTemp("", "sessionscribe-status-*")
	if err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	defer os.RemoveAll(statusDir)
	registry, err := status.NewDirRegistry(statusDir)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own binary: %w", err)
	}
	configPath, _ := cmd.Flags().GetString("config")

	jobs := make([]worker.Job, len(files))
	for i, f := range files {
		_ = registry.Set(f.Name, status.Waiting())
		jobArgs := []string{
			"run-file", f.Path,
			"--output-dir", pipeline.OutputDir(f.Path, inputDir, outputRoot),
			"--status-dir", statusDir,
			"--status-key", f.Name,
		}
		if configPath != "" {
			jobArgs = append(jobArgs, "--config", configPath)
		}
		jobs[i] = worker.Job{Name: f.Name, Args: jobArgs}
	}

	renderer := progress.NewRenderer(cmd.OutOrStdout(), isTerminal(os.Stdout))
	sup := worker.NewSupervisor(self, cfg.Workers, log)

	// Replace the default interrupt behavior for the run's duration.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	start := time.Now()
	results := sup.Start(context.Background(), jobs)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	failed := 0
	remaining := len(jobs)
	for remaining > 0 {
		select {
		case <-sigCh:
			log.Warn("interrupt received, killing workers", "live", sup.Live())
			sup.Kill()
			renderer.Render(registry.Snapshot())
			return errInterrupted
		case r := <-results:
			remaining--
			if r.Err != nil {
				failed++
				metrics.RecordFile("error")
				log.Error("file failed", "file", r.Name, "error", r.Err)
				// Workers normally publish their own terminal status; a
				// crash that skipped it is recorded here.
				if st, ok := registry.Get(r.Name); !ok || !st.Terminal() {
					_ = registry.Set(r.Name, status.Failed(r.Err.Error()))
				}
			} else {
				metrics.RecordFile("done")
			}
		case <-ticker.C:
			renderer.Render(registry.Snapshot())
		}
	}
	renderer.Render(registry.Snapshot())
	renderer.Summary(registry.Snapshot(), time.Since(start))

	noCombine, _ := cmd.Flags().GetBool("no-combine")
	if !noCombine && len(cfg.Speakers) > 0 {
		if err := runBatchCombine(cmd, cfg, log, outputRoot); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "combine failed: %v\n", err)
			log.Error("combine failed", "error", err)
			failed++
		}
	} else if !noCombine {
		log.Info("no speakers configured, skipping combine")
	}

	if err := metrics.WriteTextfile(filepath.Join(outputRoot, "run-metrics.prom")); err != nil {
		log.Warn("metrics write failed", "error", err)
	}

	if failed > 0 {
		return errRunFailed
	}
	return nil
}

func runBatchCombine(cmd *cobra.Command, cfg *config.Config, log *slog.Logger, outputRoot string) error {
	opts, err := combineOptions(cfg, log)
	if err != nil {
		return err
	}
	configs, err := combine.MapSources(outputRoot, speakerIdentities(cfg))
	if err != nil {
		return err
	}

	session, _ := cmd.Flags().GetString("session")
	if session == "" {
		session = filepath.Base(outputRoot)
	}
	outputPath := filepath.Join(outputRoot, session+"-combined.txt")

	start := time.Now()
	written, err := combine.Run(configs, opts, outputPath)
	if err != nil {
		return err
	}
	metrics.RecordStageDuration("combine", time.Since(start).Seconds())
	for _, f := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "combined transcript: %s\n", f)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
