package vtt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampRoundTrip(t *testing.T) {
	cases := []string{
		"00:00:00.000",
		"00:00:01.500",
		"00:05:42.037",
		"01:00:00.999",
		"12:34:56.789",
	}

	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			ts, err := ParseTimestamp(s)
			require.NoError(t, err)
			assert.Equal(t, s, ts.String())
		})
	}
}

func TestParseTimestampErrors(t *testing.T) {
	for _, s := range []string{"", "12:34", "aa:bb:cc.ddd", "1:2"} {
		_, err := ParseTimestamp(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestFromSeconds(t *testing.T) {
	ts := FromSeconds(3723.5)
	assert.Equal(t, "01:02:03.500", ts.String())
	assert.InDelta(t, 3723.5, ts.Seconds(), 0.001)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeText("  hello \t\n world  "))
	assert.Equal(t, "", NormalizeText("   \n\t "))
}

func TestWriteAndParse(t *testing.T) {
	cues := []Cue{
		{Start: FromSeconds(0.5), End: FromSeconds(2.25), Text: "First line"},
		{Start: FromSeconds(3), End: FromSeconds(4.1), Text: "Second line"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cues))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "WEBVTT\n\n"))
	assert.Contains(t, out, "00:00:00.500 --> 00:00:02.250\nFirst line\n")

	parsed, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, cues[0].Start, parsed[0].Start)
	assert.Equal(t, cues[1].End, parsed[1].End)
	assert.Equal(t, "Second line", parsed[1].Text)
}

func TestParseMultilineBody(t *testing.T) {
	in := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nline one\n  line   two\n\n"
	cues, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "line one line two", cues[0].Text)
}

func TestParseDropsEmptyBodies(t *testing.T) {
	in := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n   \n\n00:00:03.000 --> 00:00:04.000\nkept\n\n"
	cues, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "kept", cues[0].Text)
}

func TestParseIgnoresNonCueLines(t *testing.T) {
	in := "WEBVTT\n\nNOTE a comment\n\n00:00:01.000 --> 00:00:02.000\nhello\n\n"
	cues, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cues, 1)
}

func TestCueRange(t *testing.T) {
	c := Cue{Start: FromSeconds(1), End: FromSeconds(2)}
	assert.Equal(t, "00:00:01.000 --> 00:00:02.000", c.Range())
}
