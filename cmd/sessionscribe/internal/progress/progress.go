// Package progress renders the live batch status table. The renderer
// reads a registry snapshot on every tick and redraws in place using
// ANSI cursor movement; it owns the terminal for the run's duration.
package progress

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/status"
)

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[2m"
)

// labels is the static state-to-display mapping for fixed states.
// Transcribing and Failed are handled by rules, not the table, because
// their rendering depends on status payload.
var labels = map[status.State]struct {
	text  string
	color string
}{
	status.StateWaiting:      {"waiting", ansiDim},
	status.StateConverting:   {"converting", ansiYellow},
	status.StateSplitting:    {"splitting", ansiYellow},
	status.StateLoadingModel: {"loading model", ansiCyan},
	status.StateDone:         {"done", ansiGreen},
}

// Display returns the label and ANSI color for a status. Transcribing
// renders with its live fraction, failures with an alarm treatment, and
// unknown states fall back to a neutral rendering.
func Display(st status.Status) (label, color string) {
	switch st.State {
	case status.StateTranscribing:
		return fmt.Sprintf("transcribing %d/%d", st.Current, st.Total), ansiCyan
	case status.StateFailed:
		msg := st.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "error: " + truncate(msg, 48), ansiRed
	}
	if l, ok := labels[st.State]; ok {
		return l.text, l.color
	}
	return string(st.State), ""
}

// Renderer draws the table to an output stream. On a terminal it
// redraws in place with colors and cursor movement; on a plain stream
// (piped or redirected) it appends one line per state change and emits
// no control sequences at all.
type Renderer struct {
	out       io.Writer
	tty       bool
	lastLines int
	last      map[string]status.Status
}

// NewRenderer creates a renderer. tty selects the in-place terminal
// drawing mode.
func NewRenderer(out io.Writer, tty bool) *Renderer {
	return &Renderer{out: out, tty: tty, last: map[string]status.Status{}}
}

// Render draws the current registry snapshot. Rows are sorted by key
// for a stable layout.
func (r *Renderer) Render(snapshot map[string]status.Status) {
	keys := make([]string, 0, len(snapshot))
	width := 0
	for k := range snapshot {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	if !r.tty {
		for _, k := range keys {
			st := snapshot[k]
			if prev, ok := r.last[k]; ok && prev == st {
				continue
			}
			r.last[k] = st
			label, _ := Display(st)
			fmt.Fprintf(r.out, "%-*s  %s\n", width, k, label)
		}
		return
	}

	if r.lastLines > 0 {
		fmt.Fprintf(r.out, "\033[%dA", r.lastLines)
	}
	for _, k := range keys {
		label, color := Display(snapshot[k])
		if color != "" {
			label = color + label + ansiReset
		}
		fmt.Fprintf(r.out, "\033[2K%-*s  %s\n", width, k, label)
	}
	r.lastLines = len(keys)
}

// Summary prints the post-run error report and total duration.
func (r *Renderer) Summary(snapshot map[string]status.Status, elapsed time.Duration) {
	failed := make([]string, 0)
	done := 0
	for k, st := range snapshot {
		switch st.State {
		case status.StateFailed:
			failed = append(failed, k)
		case status.StateDone:
			done++
		}
	}
	sort.Strings(failed)

	fmt.Fprintf(r.out, "\n%d succeeded, %d failed in %s\n", done, len(failed), FormatDuration(elapsed))
	for _, k := range failed {
		msg := snapshot[k].Message
		if r.tty {
			fmt.Fprintf(r.out, "  %s%s%s: %s\n", ansiRed, k, ansiReset, msg)
		} else {
			fmt.Fprintf(r.out, "  %s: %s\n", k, msg)
		}
	}
}

// FormatDuration renders an elapsed time as "1h 01m 01s", dropping
// leading zero units.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}
