// Package vad detects speech intervals in canonical audio. Detection
// runs an external voice-activity CLI; the package owns the boundary
// padding applied afterwards so downstream segment cuts keep a little
// context around each utterance.
package vad

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/extern"
)

// ToolVAD is the extern tool alias for the detector binary.
const ToolVAD = "vad"

// Segment is one detected speech interval in seconds; End > Start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Options tune the detector.
type Options struct {
	// Threshold is the speech probability cutoff, 0..1.
	Threshold float64

	// MinSpeechSec drops detected intervals shorter than this.
	MinSpeechSec float64

	// MinSilenceSec merges intervals separated by less silence.
	MinSilenceSec float64

	// PaddingSec widens each interval on both sides after detection.
	PaddingSec float64
}

// DefaultOptions match the detector defaults used in production runs.
var DefaultOptions = Options{
	Threshold:     0.5,
	MinSpeechSec:  0.25,
	MinSilenceSec: 0.5,
	PaddingSec:    0.2,
}

// Detector finds speech intervals in an audio file.
type Detector interface {
	Detect(ctx context.Context, audioPath string) ([]Segment, error)
}

// CLIDetector shells out to a voice-activity binary that prints a JSON
// array of {start, end} objects on stdout.
type CLIDetector struct {
	runner extern.Runner
	opts   Options
}

// NewCLIDetector creates a detector using the given runner and options.
func NewCLIDetector(runner extern.Runner, opts Options) *CLIDetector {
	if opts.Threshold == 0 {
		opts = DefaultOptions
	}
	return &CLIDetector{runner: runner, opts: opts}
}

// Detect runs the detector and returns padded speech segments. A file
// with no detected speech is an error: a silent track almost always
// means the wrong input was recorded.
func (d *CLIDetector) Detect(ctx context.Context, audioPath string) ([]Segment, error) {
	resp, err := d.runner.Run(ctx, extern.Request{
		Tool: ToolVAD,
		Args: []string{
			"--threshold", formatFloat(d.opts.Threshold),
			"--min-speech", formatFloat(d.opts.MinSpeechSec),
			"--min-silence", formatFloat(d.opts.MinSilenceSec),
			"--output-format", "json",
			audioPath,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vad %s: %w", audioPath, err)
	}

	var raw []Segment
	if err := json.Unmarshal([]byte(resp.Stdout), &raw); err != nil {
		return nil, fmt.Errorf("vad %s: decode output: %w", audioPath, err)
	}

	segments := make([]Segment, 0, len(raw))
	for _, s := range raw {
		if s.End <= s.Start {
			continue
		}
		segments = append(segments, Pad(s, d.opts.PaddingSec))
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("vad %s: no speech detected", audioPath)
	}
	return segments, nil
}

// Pad widens a segment by pad seconds on both sides, clamping the start
// at zero. The end is not clamped; extraction tolerates an end past EOF.
func Pad(s Segment, pad float64) Segment {
	start := s.Start - pad
	if start < 0 {
		start = 0
	}
	return Segment{Start: start, End: s.End + pad}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
