// Package vtt implements the WebVTT caption format used between the
// per-track transcription step and the combine step: millisecond
// timestamps, a WEBVTT header, and cue blocks separated by blank lines.
package vtt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a cue time with millisecond precision.
type Timestamp time.Duration

// FromSeconds converts fractional seconds to a Timestamp, rounding to
// the nearest millisecond.
func FromSeconds(sec float64) Timestamp {
	return Timestamp(time.Duration(sec*1000+0.5) * time.Millisecond)
}

// Seconds returns the timestamp as fractional seconds.
func (t Timestamp) Seconds() float64 {
	return time.Duration(t).Seconds()
}

// String formats the timestamp as HH:MM:SS.mmm.
func (t Timestamp) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

var reCueTime = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})\.(\d{3})`)

// ParseTimestamp parses an HH:MM:SS.mmm string.
func ParseTimestamp(s string) (Timestamp, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	secParts := strings.SplitN(parts[2], ".", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	sec, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	ms := 0
	if len(secParts) == 2 {
		ms, err = strconv.Atoi(secParts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(ms)*time.Millisecond
	return Timestamp(d), nil
}

// Cue is one caption block: a time range plus its text content.
type Cue struct {
	Start Timestamp
	End   Timestamp
	Text  string
}

// Range returns the cue's timestamp header, "start --> end".
func (c Cue) Range() string {
	return c.Start.String() + " --> " + c.End.String()
}

// NormalizeText collapses runs of whitespace to a single space and trims
// both ends. Caption bodies pass through this before comparison or output.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Write emits cues in WebVTT format: the WEBVTT header, a blank line,
// then one block per cue.
func Write(w io.Writer, cues []Cue) error {
	if _, err := fmt.Fprint(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	for _, c := range cues {
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", c.Range(), strings.TrimSpace(c.Text)); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes cues to path, truncating any existing file.
func WriteFile(path string, cues []Cue) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, cues); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Parse reads a WebVTT stream and returns its cues. Body lines following
// a timestamp header are collected until a blank line, joined with a
// single space, and whitespace-normalized. Cues whose normalized body is
// empty are dropped. Lines outside cue blocks (header, notes, bare cue
// identifiers) are ignored.
func Parse(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []Cue
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := reCueTime.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start := hmsms(m[1], m[2], m[3], m[4])
		end := hmsms(m[5], m[6], m[7], m[8])

		var body []string
		for scanner.Scan() {
			l := strings.TrimSpace(scanner.Text())
			if l == "" {
				break
			}
			body = append(body, l)
		}
		text := NormalizeText(strings.Join(body, " "))
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Start: start, End: end, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cues, nil
}

// ParseFile reads a WebVTT file from disk.
func ParseFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cues, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cues, nil
}

func hmsms(hh, mm, ss, ms string) Timestamp {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	s, _ := strconv.Atoi(ss)
	msI, _ := strconv.Atoi(ms)
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(msI)*time.Millisecond
	return Timestamp(d)
}
