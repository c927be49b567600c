package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/status"
)

func TestDisplayFixedStates(t *testing.T) {
	label, _ := Display(status.Waiting())
	assert.Equal(t, "waiting", label)

	label, color := Display(status.Status{State: status.StateDone})
	assert.Equal(t, "done", label)
	assert.Equal(t, ansiGreen, color)
}

func TestDisplayTranscribingFraction(t *testing.T) {
	label, color := Display(status.Transcribing(3, 15))
	assert.Equal(t, "transcribing 3/15", label)
	assert.Equal(t, ansiCyan, color)
}

func TestDisplayErrorTreatment(t *testing.T) {
	label, color := Display(status.Failed("ffmpeg exploded"))
	assert.Equal(t, "error: ffmpeg exploded", label)
	assert.Equal(t, ansiRed, color)

	label, _ = Display(status.Failed(""))
	assert.Equal(t, "error: unknown error", label)
}

func TestDisplayTruncatesLongErrors(t *testing.T) {
	label, _ := Display(status.Failed(strings.Repeat("x", 100)))
	assert.LessOrEqual(t, len(label), len("error: ")+48)
	assert.True(t, strings.HasSuffix(label, "..."))
}

func TestDisplayTruncatesOnRuneBoundaries(t *testing.T) {
	label, _ := Display(status.Failed(strings.Repeat("é", 100)))
	assert.True(t, utf8.ValidString(label))
	assert.True(t, strings.HasSuffix(label, "..."))
	assert.Equal(t, len("error: ")+48, utf8.RuneCountInString(label))
}

func TestDisplayUnknownStateFallback(t *testing.T) {
	label, color := Display(status.Status{State: status.State("mystery")})
	assert.Equal(t, "mystery", label)
	assert.Equal(t, "", color)
}

func TestRenderStableOrderAndRedraw(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	snap := map[string]status.Status{
		"2-bob.wav":    status.Transcribing(1, 3),
		"1-alice.flac": status.Waiting(),
	}
	r.Render(snap)
	first := buf.String()
	assert.Less(t, strings.Index(first, "1-alice.flac"), strings.Index(first, "2-bob.wav"))

	buf.Reset()
	r.Render(snap)
	// Second render moves the cursor up over the previous two rows.
	assert.True(t, strings.HasPrefix(buf.String(), "\033[2A"))
}

func TestRenderPlainStreamEmitsNoControlSequences(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	snap := map[string]status.Status{
		"a.wav": status.Waiting(),
		"b.wav": status.Transcribing(1, 3),
	}
	r.Render(snap)
	assert.NotContains(t, buf.String(), "\033")
	assert.Contains(t, buf.String(), "transcribing 1/3")

	// Unchanged statuses are not repeated on later ticks.
	buf.Reset()
	r.Render(snap)
	assert.Empty(t, buf.String())

	snap["b.wav"] = status.Status{State: status.StateDone}
	r.Render(snap)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "done")
}

func TestSummaryPlainStreamEmitsNoControlSequences(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	r.Summary(map[string]status.Status{
		"b.wav": status.Failed("boom"),
	}, time.Second)
	assert.NotContains(t, buf.String(), "\033")
}

func TestSummaryListsFailures(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	r.Summary(map[string]status.Status{
		"a.wav": {State: status.StateDone},
		"b.wav": status.Failed("segmentation failed"),
	}, 65*time.Second)

	out := buf.String()
	assert.Contains(t, out, "1 succeeded, 1 failed in 1m 05s")
	assert.Contains(t, out, "b.wav: segmentation failed")
	assert.NotContains(t, out, "a.wav:")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h 01m 01s", FormatDuration(3661*time.Second))
	assert.Equal(t, "2m 05s", FormatDuration(125*time.Second))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "0s", FormatDuration(300*time.Millisecond))
}
