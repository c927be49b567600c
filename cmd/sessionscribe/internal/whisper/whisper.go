// Package whisper adapts an external speech-to-text CLI to the
// pipeline. The transcriber receives one speech segment at a time plus
// the segment's offset inside the original track, and returns
// utterances with file-global timestamps.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/extern"
)

// ToolWhisper is the extern tool alias for the transcription binary.
const ToolWhisper = "whisper"

// Utterance is one recognized phrase with file-global times in seconds.
type Utterance struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// Options configure the model invocation.
type Options struct {
	Model       string
	Language    string
	Temperature float64
	Prompt      string

	// Threads caps the model's compute threads; 0 leaves it to the CLI.
	Threads int
}

// Transcriber converts one audio segment into utterances. Offset is the
// segment's start inside the original track and is added to all
// returned times.
type Transcriber interface {
	Transcribe(ctx context.Context, segmentPath string, offset float64) ([]Utterance, error)
}

// CLITranscriber invokes a whisper-style binary that prints a JSON
// transcription result on stdout.
type CLITranscriber struct {
	runner extern.Runner
	opts   Options
}

// NewCLITranscriber creates a transcriber using the given runner.
func NewCLITranscriber(runner extern.Runner, opts Options) *CLITranscriber {
	return &CLITranscriber{runner: runner, opts: opts}
}

type cliResult struct {
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe runs the model on one segment file.
func (t *CLITranscriber) Transcribe(ctx context.Context, segmentPath string, offset float64) ([]Utterance, error) {
	args := []string{
		"--model", t.opts.Model,
		"--output-format", "json",
	}
	if t.opts.Language != "" {
		args = append(args, "--language", t.opts.Language)
	}
	if t.opts.Temperature > 0 {
		args = append(args, "--temperature", strconv.FormatFloat(t.opts.Temperature, 'g', -1, 64))
	}
	if t.opts.Prompt != "" {
		args = append(args, "--initial-prompt", t.opts.Prompt)
	}
	if t.opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(t.opts.Threads))
	}
	args = append(args, segmentPath)

	resp, err := t.runner.Run(ctx, extern.Request{Tool: ToolWhisper, Args: args})
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", segmentPath, err)
	}

	var result cliResult
	if err := json.Unmarshal([]byte(resp.Stdout), &result); err != nil {
		return nil, fmt.Errorf("transcribe %s: decode output: %w", segmentPath, err)
	}

	utterances := make([]Utterance, 0, len(result.Segments))
	for _, s := range result.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		utterances = append(utterances, Utterance{
			Start:      s.Start + offset,
			End:        s.End + offset,
			Text:       text,
			Confidence: ConfidenceFromLogprob(s.AvgLogprob),
		})
	}
	return utterances, nil
}

// ConfidenceFromLogprob maps an average log probability to a 0..100
// score: (1 + avg_logprob) * 100, clamped.
func ConfidenceFromLogprob(avgLogprob float64) float64 {
	c := (1 + avgLogprob) * 100
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// Mock returns canned utterances, for tests and dry runs.
type Mock struct {
	Utterances []Utterance
	Err        error
	Calls      []string
}

func (m *Mock) Transcribe(_ context.Context, segmentPath string, offset float64) ([]Utterance, error) {
	m.Calls = append(m.Calls, segmentPath)
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]Utterance, len(m.Utterances))
	for i, u := range m.Utterances {
		u.Start += offset
		u.End += offset
		out[i] = u
	}
	return out, nil
}
