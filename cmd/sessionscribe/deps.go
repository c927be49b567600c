package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/audio"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/combine"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/config"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/extern"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/pipeline"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/vad"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/whisper"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// buildRunner assembles the per-file pipeline from configuration.
func buildRunner(cfg *config.Config, log *slog.Logger) *pipeline.Runner {
	runner := extern.NewLocalRunner(cfg.BinaryPaths(), 0)
	return &pipeline.Runner{
		Audio: audio.NewProcessor(runner, audio.Params{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		}),
		Detector: vad.NewCLIDetector(runner, vad.Options{
			Threshold:     cfg.VAD.Threshold,
			MinSpeechSec:  cfg.VAD.MinSpeechSec,
			MinSilenceSec: cfg.VAD.MinSilenceSec,
			PaddingSec:    cfg.VAD.PaddingSec,
		}),
		Transcriber: whisper.NewCLITranscriber(runner, whisper.Options{
			Model:       cfg.Whisper.Model,
			Language:    cfg.Whisper.Language,
			Temperature: cfg.Whisper.Temperature,
			Prompt:      cfg.Whisper.Prompt,
			Threads:     cfg.EffectiveThreads(),
		}),
		Log:        log,
		SampleRate: cfg.Audio.SampleRate,
	}
}

func speakerIdentities(cfg *config.Config) []combine.SpeakerIdentity {
	identities := make([]combine.SpeakerIdentity, len(cfg.Speakers))
	for i, sp := range cfg.Speakers {
		identities[i] = combine.SpeakerIdentity{
			Dir:         sp.Dir,
			Player:      sp.Player,
			Role:        sp.Role,
			Character:   sp.Character,
			Description: sp.Description,
		}
	}
	return identities
}

func combineOptions(cfg *config.Config, log *slog.Logger) (combine.Options, error) {
	mode, err := combine.ParseDedupeMode(cfg.Combine.Dedupe)
	if err != nil {
		return combine.Options{}, err
	}
	return combine.Options{
		Dedupe:            mode,
		SkipFilters:       cfg.Combine.SkipFilters,
		Chunks:            cfg.Combine.Chunks,
		IncludeTimestamps: cfg.Combine.IncludeTimestamps,
		Log:               log,
	}, nil
}
