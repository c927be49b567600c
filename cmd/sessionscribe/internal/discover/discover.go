// Package discover enumerates the audio tracks of a session directory.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/audio"
)

// AudioFile is one discovered input track.
type AudioFile struct {
	Path string
	Name string
}

// supportedExtensions are matched case-insensitively.
var supportedExtensions = map[string]struct{}{
	".wav":  {},
	".flac": {},
	".mp3":  {},
	".m4a":  {},
	".ogg":  {},
	".aac":  {},
	".opus": {},
}

// Supported reports whether name carries a recognized audio extension.
func Supported(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// AudioFiles lists the eligible tracks directly under dir, sorted by
// name. Subdirectories are not entered. Normalized copies produced by a
// previous run (the converted suffix in the name) are excluded.
func AudioFiles(dir string) ([]AudioFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var files []AudioFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !Supported(name) {
			continue
		}
		if strings.Contains(name, audio.ConvertedSuffix) {
			continue
		}
		files = append(files, AudioFile{Path: filepath.Join(dir, name), Name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
