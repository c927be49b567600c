package extern

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunnerEcho(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	r := NewLocalRunner(nil, time.Minute)
	resp, err := r.Run(context.Background(), Request{Tool: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, "hello\n", resp.Stdout)
}

func TestLocalRunnerExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	r := NewLocalRunner(nil, time.Minute)
	resp, err := r.Run(context.Background(), Request{Tool: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	require.Error(t, err)
	assert.Equal(t, 3, resp.ExitCode)
	assert.Contains(t, resp.Stderr, "oops")
	assert.Contains(t, err.Error(), "exit 3")
}

func TestLocalRunnerUnknownTool(t *testing.T) {
	r := NewLocalRunner(nil, time.Minute)
	_, err := r.Run(context.Background(), Request{Tool: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
}

func TestLocalRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	r := NewLocalRunner(nil, time.Minute)
	_, err := r.Run(context.Background(), Request{
		Tool:    "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestLocalRunnerBinaryPathTable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	r := NewLocalRunner(map[string]string{"ffmpeg": "/bin/true"}, time.Minute)
	resp, err := r.Run(context.Background(), Request{Tool: "ffmpeg"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.ExitCode)
}

func TestCheck(t *testing.T) {
	ok := NewLocalRunner(map[string]string{"sh": ""}, time.Minute)
	assert.NoError(t, ok.Check())

	bad := NewLocalRunner(map[string]string{"whisper": "/nonexistent/whisper-cli"}, time.Minute)
	assert.Error(t, bad.Check())
}

func TestExitCodeHelper(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(context.Canceled))
}
