package combine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/vtt"
)

func writeCaption(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, vtt.WriteFile(path, []vtt.Cue{cue(1, 2, "hi")}))
	return path
}

func TestMapSourcesNestedLayout(t *testing.T) {
	root := t.TempDir()
	a := writeCaption(t, root, "1-alice/1-alice.vtt")
	b := writeCaption(t, root, "2-bob/2-bob.vtt")

	configs, err := MapSources(root, []SpeakerIdentity{
		{Dir: "1-alice", Player: "Alice", Character: "Riva"},
		{Dir: "2-bob", Player: "Bob", Character: "Thorn"},
	})
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, a, configs[0].Source)
	assert.Equal(t, "Riva", configs[0].Character)
	assert.Equal(t, b, configs[1].Source)
}

func TestMapSourcesFlatLayout(t *testing.T) {
	root := t.TempDir()
	writeCaption(t, root, "1-alice.vtt")

	configs, err := MapSources(root, []SpeakerIdentity{{Dir: "1-alice", Player: "Alice"}})
	require.NoError(t, err)
	require.Len(t, configs, 1)
}

func TestMapSourcesUnmappedCaption(t *testing.T) {
	root := t.TempDir()
	writeCaption(t, root, "1-alice.vtt")
	writeCaption(t, root, "9-stranger.vtt")

	_, err := MapSources(root, []SpeakerIdentity{{Dir: "1-alice", Player: "Alice"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no speaker mapping")
}

func TestMapSourcesAmbiguousMapping(t *testing.T) {
	root := t.TempDir()
	writeCaption(t, root, "alice-bob.vtt")

	_, err := MapSources(root, []SpeakerIdentity{
		{Dir: "alice", Player: "Alice"},
		{Dir: "bob", Player: "Bob"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches multiple speakers")
}

func TestMapSourcesMissingSpeakerCaption(t *testing.T) {
	root := t.TempDir()
	writeCaption(t, root, "1-alice.vtt")

	_, err := MapSources(root, []SpeakerIdentity{
		{Dir: "1-alice", Player: "Alice"},
		{Dir: "2-bob", Player: "Bob"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no caption file found for speaker 2-bob")
}

func TestMapSourcesNoCaptions(t *testing.T) {
	_, err := MapSources(t.TempDir(), []SpeakerIdentity{{Dir: "x", Player: "X"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no caption files found")
}

func TestMapSourcesNoSpeakers(t *testing.T) {
	_, err := MapSources(t.TempDir(), nil)
	assert.Error(t, err)
}
