package combine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/pipeline"
)

// SpeakerIdentity is the configured metadata for one speaker, keyed by
// a directory identifier that appears in the track's output location.
type SpeakerIdentity struct {
	Dir         string
	Player      string
	Role        string
	Character   string
	Description string
}

// MapSources locates each configured speaker's caption file under
// root. Caption files are searched at the top level and one directory
// deep (the per-track output layout). Mapping is fail-fast: a caption
// matching no identity, a caption matching several, or an identity
// with no caption all abort the merge.
func MapSources(root string, identities []SpeakerIdentity) ([]SpeakerConfig, error) {
	if len(identities) == 0 {
		return nil, pipeline.NewCombineError("no speakers configured", nil)
	}

	captions, err := findCaptions(root)
	if err != nil {
		return nil, err
	}
	if len(captions) == 0 {
		return nil, pipeline.NewCombineError(fmt.Sprintf("no caption files found in %s", root), nil)
	}

	bySpeaker := make(map[string]string, len(identities))
	for _, path := range captions {
		ident := captionIdentifier(root, path)
		var matches []SpeakerIdentity
		for _, id := range identities {
			if strings.Contains(strings.ToLower(ident), strings.ToLower(id.Dir)) {
				matches = append(matches, id)
			}
		}
		switch len(matches) {
		case 0:
			return nil, pipeline.NewCombineError(
				fmt.Sprintf("no speaker mapping for caption %s", path), nil)
		case 1:
			if prev, dup := bySpeaker[matches[0].Dir]; dup {
				return nil, pipeline.NewCombineError(
					fmt.Sprintf("speaker %s matches both %s and %s", matches[0].Dir, prev, path), nil)
			}
			bySpeaker[matches[0].Dir] = path
		default:
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.Dir
			}
			return nil, pipeline.NewCombineError(
				fmt.Sprintf("caption %s matches multiple speakers: %s", path, strings.Join(names, ", ")), nil)
		}
	}

	configs := make([]SpeakerConfig, 0, len(identities))
	for _, id := range identities {
		source, ok := bySpeaker[id.Dir]
		if !ok {
			return nil, pipeline.NewCombineError(
				fmt.Sprintf("no caption file found for speaker %s", id.Dir), nil)
		}
		configs = append(configs, SpeakerConfig{
			Player:      id.Player,
			Role:        id.Role,
			Character:   id.Character,
			Description: id.Description,
			Source:      source,
		})
	}
	return configs, nil
}

func findCaptions(root string) ([]string, error) {
	var captions []string
	for _, pattern := range []string{"*.vtt", "*/*.vtt"} {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, pipeline.NewCombineError(fmt.Sprintf("scan %s", root), err)
		}
		captions = append(captions, matches...)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, pipeline.NewCombineError(fmt.Sprintf("read %s", root), err)
	}
	sort.Strings(captions)
	return captions, nil
}

// captionIdentifier is the path fragment matched against speaker
// directory identifiers: the caption's location relative to root
// without the extension.
func captionIdentifier(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}
