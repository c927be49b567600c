package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/combine"
	"github.com/tabletop-tools/sessionscribe/pkg/logger"
)

func newCombineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine <dir>",
		Short: "Merge per-speaker caption files into one transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runCombine,
	}
	cmd.Flags().String("output", "", "combined transcript path (default <dir>/<dir>-combined.txt)")
	cmd.Flags().String("dedupe", "", "dedup mode: off, consecutive or unique (overrides config)")
	cmd.Flags().Int("chunks", 0, "number of output chunks (overrides config)")
	cmd.Flags().Bool("timestamps", false, "include timestamp ranges in output lines")
	return cmd
}

func runCombine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := args[0]

	if v, _ := cmd.Flags().GetString("dedupe"); v != "" {
		cfg.Combine.Dedupe = v
	}
	if v, _ := cmd.Flags().GetInt("chunks"); v > 0 {
		cfg.Combine.Chunks = v
	}
	if set, _ := cmd.Flags().GetBool("timestamps"); set {
		cfg.Combine.IncludeTimestamps = true
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	opts, err := combineOptions(cfg, log)
	if err != nil {
		return err
	}

	configs, err := combine.MapSources(dir, speakerIdentities(cfg))
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		base := filepath.Base(filepath.Clean(dir))
		outputPath = filepath.Join(dir, base+"-combined.txt")
	}

	written, err := combine.Run(configs, opts, outputPath)
	if err != nil {
		return err
	}
	for _, f := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "combined transcript: %s\n", f)
	}
	return nil
}
