package whisper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/extern"
)

type fakeRunner struct {
	stdout string
	err    error
	last   extern.Request
}

func (f *fakeRunner) Run(_ context.Context, req extern.Request) (extern.Response, error) {
	f.last = req
	if f.err != nil {
		return extern.Response{ExitCode: 1}, f.err
	}
	return extern.Response{Stdout: f.stdout}, nil
}

func (f *fakeRunner) Check() error { return nil }

const resultJSON = `{
  "segments": [
    {"start": 0.0, "end": 2.0, "text": " Hello there. ", "avg_logprob": -0.2},
    {"start": 2.5, "end": 4.0, "text": "General Kenobi.", "avg_logprob": -0.05},
    {"start": 4.5, "end": 5.0, "text": "   ", "avg_logprob": -0.1}
  ]
}`

func TestTranscribeAppliesOffset(t *testing.T) {
	f := &fakeRunner{stdout: resultJSON}
	tr := NewCLITranscriber(f, Options{Model: "models/medium.bin", Language: "en", Threads: 4})

	utts, err := tr.Transcribe(context.Background(), "seg_003.wav", 120.5)
	require.NoError(t, err)
	require.Len(t, utts, 2) // blank segment dropped

	assert.InDelta(t, 120.5, utts[0].Start, 1e-9)
	assert.InDelta(t, 122.5, utts[0].End, 1e-9)
	assert.Equal(t, "Hello there.", utts[0].Text)
	assert.InDelta(t, 80.0, utts[0].Confidence, 1e-9)

	assert.InDelta(t, 123.0, utts[1].Start, 1e-9)
	assert.InDelta(t, 95.0, utts[1].Confidence, 1e-9)
}

func TestTranscribeArgs(t *testing.T) {
	f := &fakeRunner{stdout: `{"segments": []}`}
	tr := NewCLITranscriber(f, Options{
		Model:       "m.bin",
		Language:    "de",
		Temperature: 0.2,
		Prompt:      "Session recap",
		Threads:     2,
	})

	_, err := tr.Transcribe(context.Background(), "seg.wav", 0)
	require.NoError(t, err)

	assert.Equal(t, ToolWhisper, f.last.Tool)
	assert.Contains(t, f.last.Args, "m.bin")
	assert.Contains(t, f.last.Args, "--language")
	assert.Contains(t, f.last.Args, "--temperature")
	assert.Contains(t, f.last.Args, "--initial-prompt")
	assert.Contains(t, f.last.Args, "--threads")
	assert.Equal(t, "seg.wav", f.last.Args[len(f.last.Args)-1])
}

func TestTranscribeRunnerError(t *testing.T) {
	f := &fakeRunner{err: errors.New("model load failed")}
	tr := NewCLITranscriber(f, Options{Model: "m.bin"})

	_, err := tr.Transcribe(context.Background(), "seg.wav", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcribe seg.wav")
}

func TestTranscribeBadOutput(t *testing.T) {
	f := &fakeRunner{stdout: "garbage"}
	tr := NewCLITranscriber(f, Options{Model: "m.bin"})

	_, err := tr.Transcribe(context.Background(), "seg.wav", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode output")
}

func TestConfidenceFromLogprob(t *testing.T) {
	assert.Equal(t, 100.0, ConfidenceFromLogprob(0))
	assert.Equal(t, 100.0, ConfidenceFromLogprob(0.5))
	assert.Equal(t, 0.0, ConfidenceFromLogprob(-1))
	assert.Equal(t, 0.0, ConfidenceFromLogprob(-3))
	assert.InDelta(t, 70.0, ConfidenceFromLogprob(-0.3), 1e-9)
}

func TestMockOffset(t *testing.T) {
	m := &Mock{Utterances: []Utterance{{Start: 1, End: 2, Text: "hi"}}}
	utts, err := m.Transcribe(context.Background(), "s.wav", 10)
	require.NoError(t, err)
	assert.Equal(t, 11.0, utts[0].Start)
	assert.Equal(t, []string{"s.wav"}, m.Calls)
}
