// sessionscribe turns a directory of independently recorded session
// audio tracks into a single merged transcript: per-track conversion,
// speech detection and transcription run in parallel worker processes,
// then the per-speaker captions are combined chronologically.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// errInterrupted marks a batch run cancelled by the user.
var errInterrupted = errors.New("interrupted")

// errRunFailed marks a run with at least one per-file or combine
// failure; the message was already reported.
var errRunFailed = errors.New("run failed")

func main() {
	rootCmd := &cobra.Command{
		Use:           "sessionscribe",
		Short:         "Multi-track session audio transcription",
		Long:          "Transcribe per-speaker audio tracks in parallel and merge them into one chronological transcript.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to the configuration file")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newSingleCmd())
	rootCmd.AddCommand(newCombineCmd())
	rootCmd.AddCommand(newRunFileCmd())

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			os.Exit(130)
		}
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
