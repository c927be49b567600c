package pipeline

import (
	"path/filepath"
	"strings"
)

// OutputDir maps an input audio file to its per-track output directory.
// The mapping is a pure function of its arguments: the input's location
// relative to inputRoot is preserved under outputRoot, with the file's
// stem as the leaf directory. Inputs outside inputRoot fall back to
// just the stem.
//
//	/in/2025-07-27/5-dana.flac, /in, /out -> /out/2025-07-27/5-dana
func OutputDir(input, inputRoot, outputRoot string) string {
	stem := Stem(input)
	rel, err := filepath.Rel(inputRoot, input)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Join(outputRoot, stem)
	}
	parent := filepath.Dir(rel)
	if parent == "." {
		return filepath.Join(outputRoot, stem)
	}
	return filepath.Join(outputRoot, parent, stem)
}

// Stem returns the file's base name without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CaptionPath returns the per-track caption file inside outputDir.
func CaptionPath(outputDir, input string) string {
	return filepath.Join(outputDir, Stem(input)+".vtt")
}

// ManifestPath returns the run manifest file inside outputDir.
func ManifestPath(outputDir string) string {
	return filepath.Join(outputDir, "manifest.json")
}

// SegmentsDir returns the directory holding extracted speech segments.
func SegmentsDir(outputDir string) string {
	return filepath.Join(outputDir, "segments")
}
