// Package audio wraps ffprobe and ffmpeg for the pipeline's codec
// concerns: probing stream parameters, normalizing input to the
// canonical transcription format (wav, 16 kHz, mono) and cutting
// speech segments out of a normalized track.
package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/extern"
)

const (
	// ConvertedSuffix marks normalized copies so discovery skips them.
	ConvertedSuffix = "_converted"

	// ToolFFmpeg and ToolFFprobe are the extern tool aliases.
	ToolFFmpeg  = "ffmpeg"
	ToolFFprobe = "ffprobe"
)

// Params are the target parameters for canonical audio.
type Params struct {
	SampleRate int
	Channels   int
}

// DefaultParams is the canonical transcription format.
var DefaultParams = Params{SampleRate: 16000, Channels: 1}

// Info holds the probed properties of an audio file.
type Info struct {
	CodecName  string
	SampleRate int
	Channels   int
	Duration   float64
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Processor performs probe, convert and extract operations through a
// command runner.
type Processor struct {
	runner extern.Runner
	params Params
}

// NewProcessor creates a processor targeting the given canonical params.
func NewProcessor(runner extern.Runner, params Params) *Processor {
	if params.SampleRate == 0 {
		params = DefaultParams
	}
	return &Processor{runner: runner, params: params}
}

// Probe runs ffprobe and returns the first audio stream's properties.
func (p *Processor) Probe(ctx context.Context, path string) (Info, error) {
	resp, err := p.runner.Run(ctx, extern.Request{
		Tool: ToolFFprobe,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_streams",
			"-show_format",
			path,
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(resp.Stdout), &out); err != nil {
		return Info{}, fmt.Errorf("probe %s: decode output: %w", path, err)
	}

	info := Info{}
	if out.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.CodecName = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		return info, nil
	}
	return Info{}, fmt.Errorf("probe %s: no audio stream", path)
}

// IsCanonical reports whether info already matches the target params.
func (p *Processor) IsCanonical(info Info) bool {
	return strings.HasPrefix(info.CodecName, "pcm_") &&
		info.SampleRate == p.params.SampleRate &&
		info.Channels == p.params.Channels
}

// CanonicalPath returns the normalized copy's path for an input file:
// same directory, same stem, the converted suffix and a .wav extension.
func CanonicalPath(input string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	return stem + ConvertedSuffix + ".wav"
}

// EnsureCanonical returns a path to canonical audio for input. Inputs
// already in canonical form are returned unchanged. Otherwise the file
// is converted next to the input; an existing converted copy that
// probes as canonical is reused.
func (p *Processor) EnsureCanonical(ctx context.Context, input string) (string, error) {
	info, err := p.Probe(ctx, input)
	if err != nil {
		return "", err
	}
	if p.IsCanonical(info) {
		return input, nil
	}

	target := CanonicalPath(input)
	if _, statErr := os.Stat(target); statErr == nil {
		if existing, probeErr := p.Probe(ctx, target); probeErr == nil && p.IsCanonical(existing) {
			return target, nil
		}
	}

	_, err = p.runner.Run(ctx, extern.Request{
		Tool: ToolFFmpeg,
		Args: []string{
			"-hide_banner", "-loglevel", "error",
			"-y",
			"-i", input,
			"-ar", strconv.Itoa(p.params.SampleRate),
			"-ac", strconv.Itoa(p.params.Channels),
			"-c:a", "pcm_s16le",
			target,
		},
	})
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", input, err)
	}
	return target, nil
}

// Extract cuts [start, end) seconds of a canonical wav into outPath.
func (p *Processor) Extract(ctx context.Context, input string, start, end float64, outPath string) error {
	if end <= start {
		return fmt.Errorf("extract %s: invalid range %.3f..%.3f", input, start, end)
	}
	_, err := p.runner.Run(ctx, extern.Request{
		Tool: ToolFFmpeg,
		Args: []string{
			"-hide_banner", "-loglevel", "error",
			"-y",
			"-ss", formatSeconds(start),
			"-to", formatSeconds(end),
			"-i", input,
			"-c:a", "pcm_s16le",
			outPath,
		},
	})
	if err != nil {
		return fmt.Errorf("extract %s [%.3f..%.3f]: %w", input, start, end, err)
	}
	return nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
