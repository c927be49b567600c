//go:build unix

package worker

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func collect(t *testing.T, ch <-chan Result, want int) map[string]error {
	t.Helper()
	out := make(map[string]error)
	timeout := time.After(30 * time.Second)
	for len(out) < want {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out[r.Name] = r.Err
		case <-timeout:
			t.Fatalf("timed out waiting for results, got %d of %d", len(out), want)
		}
	}
	return out
}

func TestStartRunsAllJobs(t *testing.T) {
	s := NewSupervisor("/bin/sh", 2, testLog())
	jobs := []Job{
		{Name: "a", Args: []string{"-c", "exit 0"}},
		{Name: "b", Args: []string{"-c", "exit 0"}},
		{Name: "c", Args: []string{"-c", "exit 0"}},
	}

	results := collect(t, s.Start(context.Background(), jobs), 3)
	require.Len(t, results, 3)
	for name, err := range results {
		assert.NoError(t, err, name)
	}
	assert.Equal(t, 0, s.Live())
}

func TestFailureIsolation(t *testing.T) {
	s := NewSupervisor("/bin/sh", 2, testLog())
	jobs := []Job{
		{Name: "good", Args: []string{"-c", "exit 0"}},
		{Name: "bad", Args: []string{"-c", "echo model load failed >&2; exit 1"}},
	}

	results := collect(t, s.Start(context.Background(), jobs), 2)
	assert.NoError(t, results["good"])
	require.Error(t, results["bad"])
	assert.Contains(t, results["bad"].Error(), "model load failed")
}

func TestKillTerminatesLiveWorkers(t *testing.T) {
	s := NewSupervisor("/bin/sh", 2, testLog())
	jobs := []Job{
		{Name: "sleeper1", Args: []string{"-c", "sleep 60"}},
		{Name: "sleeper2", Args: []string{"-c", "sleep 60"}},
	}

	ch := s.Start(context.Background(), jobs)
	require.Eventually(t, func() bool { return s.Live() == 2 }, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	s.Kill()
	results := collect(t, ch, 2)
	assert.Less(t, time.Since(start), 5*time.Second)
	for name, err := range results {
		assert.ErrorIs(t, err, ErrKilled, name)
	}
}

func TestKillPreventsNewStarts(t *testing.T) {
	s := NewSupervisor("/bin/sh", 1, testLog())
	s.Kill()

	results := collect(t, s.Start(context.Background(), []Job{
		{Name: "late", Args: []string{"-c", "exit 0"}},
	}), 1)
	assert.ErrorIs(t, results["late"], ErrKilled)
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	s := NewSupervisor("/bin/sh", 1, testLog())
	jobs := []Job{
		{Name: "a", Args: []string{"-c", "sleep 0.2"}},
		{Name: "b", Args: []string{"-c", "sleep 0.2"}},
	}

	ch := s.Start(context.Background(), jobs)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, s.Live(), 1)
	collect(t, ch, 2)
}

func TestTailWriterKeepsTail(t *testing.T) {
	w := &tailWriter{limit: 8}
	_, err := w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "89abcdef", w.String())
}
