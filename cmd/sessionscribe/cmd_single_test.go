//go:build unix

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestRoot(args ...string) (*cobra.Command, *bytes.Buffer) {
	root := &cobra.Command{Use: "sessionscribe", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("config", "", "path to the configuration file")
	root.AddCommand(newSingleCmd())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	return root, &out
}

func TestSingleCommandWritesCaptionManifestAndMetrics(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "alice.wav")
	require.NoError(t, os.WriteFile(input, []byte("RIFF"), 0o644))

	// The input probes as canonical, so ffmpeg is only invoked for
	// segment extraction and just has to create its output file.
	tools := t.TempDir()
	writeTool(t, tools, "ffprobe",
		`echo '{"streams":[{"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"16000","channels":1}],"format":{"duration":"4.0"}}'`)
	writeTool(t, tools, "ffmpeg", `for last; do :; done
: > "$last"`)
	vadBin := writeTool(t, tools, "fake-vad", `echo '[{"start":0.5,"end":2.0}]'`)
	whisperBin := writeTool(t, tools, "fake-whisper",
		`echo '{"segments":[{"start":0.0,"end":1.5,"text":"hello there","avg_logprob":-0.2}]}'`)

	t.Setenv("PATH", tools+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("SESSIONSCRIBE_VAD_BINARY", vadBin)
	t.Setenv("SESSIONSCRIBE_WHISPER_BINARY", whisperBin)

	outDir := filepath.Join(dir, "out")
	root, stdout := newTestRoot("single", input, "--output", outDir)
	require.NoError(t, root.Execute())

	assert.Contains(t, stdout.String(), "caption file:")

	caption, err := os.ReadFile(filepath.Join(outDir, "alice.vtt"))
	require.NoError(t, err)
	assert.Contains(t, string(caption), "hello there")

	_, err = os.Stat(filepath.Join(outDir, "manifest.json"))
	require.NoError(t, err)

	prom, err := os.ReadFile(filepath.Join(outDir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sessionscribe_files_total")
	assert.Contains(t, string(prom), "sessionscribe_stage_duration_seconds")
}
