// Package combine merges the per-speaker caption files of one session
// into a single chronological transcript: parse, filter, dedup, stable
// merge by start time, summary header, optional chunked output.
//
// The merge is fail-fast: a missing source or an ambiguous speaker
// mapping aborts before any output file is written.
package combine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/pipeline"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/vtt"
)

// DedupeMode selects per-source duplicate handling.
type DedupeMode string

const (
	DedupeOff         DedupeMode = "off"
	DedupeConsecutive DedupeMode = "consecutive"
	DedupeUnique      DedupeMode = "unique"
)

// ParseDedupeMode validates a mode string from config or flags.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch DedupeMode(s) {
	case DedupeOff, DedupeConsecutive, DedupeUnique:
		return DedupeMode(s), nil
	case "":
		return DedupeOff, nil
	}
	return "", fmt.Errorf("invalid dedupe mode %q (want off, consecutive or unique)", s)
}

// SpeakerConfig is the static metadata for one speaker track.
type SpeakerConfig struct {
	Player      string
	Role        string
	Character   string
	Description string

	// Source is the speaker's caption file.
	Source string
}

// Entry is one merged transcript line.
type Entry struct {
	Range   string
	Start   float64
	End     float64
	Speaker string
	Content string
}

// Options configure a merge run.
type Options struct {
	Dedupe            DedupeMode
	SkipFilters       []string
	Chunks            int
	IncludeTimestamps bool
	Log               *slog.Logger
}

// minChunkEntries is the minimum entries a chunk must hold; requests
// that would go below it collapse to a single chunk.
const minChunkEntries = 5

// narratorRoles are roles whose label replaces the character label in
// the summary header.
var narratorRoles = map[string]struct{}{
	"dm":        {},
	"gm":        {},
	"narrator":  {},
	"moderator": {},
	"host":      {},
}

// FilterSet holds compiled skip filters. Plain filters match as literal
// substrings; filters wrapped in slashes match as regular expressions.
type FilterSet struct {
	literals []string
	patterns []*regexp.Regexp
}

// CompileFilters builds a FilterSet, rejecting invalid regex filters.
func CompileFilters(filters []string) (*FilterSet, error) {
	fs := &FilterSet{}
	for _, f := range filters {
		if len(f) >= 2 && strings.HasPrefix(f, "/") && strings.HasSuffix(f, "/") {
			re, err := regexp.Compile(f[1 : len(f)-1])
			if err != nil {
				return nil, fmt.Errorf("invalid skip filter %q: %w", f, err)
			}
			fs.patterns = append(fs.patterns, re)
			continue
		}
		fs.literals = append(fs.literals, f)
	}
	return fs, nil
}

// Match reports whether content hits any filter.
func (fs *FilterSet) Match(content string) bool {
	for _, lit := range fs.literals {
		if strings.Contains(content, lit) {
			return true
		}
	}
	for _, re := range fs.patterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// dedupKey reduces content to its comparison form: lower case, no
// punctuation, single spaces. Retakes that differ only in case or
// punctuation collapse to the same key.
func dedupKey(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range strings.ToLower(content) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// parseSource reads one caption file into entries for its speaker,
// applying skip filters and per-source dedup in parse order.
func parseSource(cfg SpeakerConfig, mode DedupeMode, filters *FilterSet) ([]Entry, error) {
	cues, err := vtt.ParseFile(cfg.Source)
	if err != nil {
		return nil, err
	}

	speaker := speakerLabel(cfg)
	var entries []Entry
	lastKey := ""
	seen := map[string]struct{}{}
	for _, c := range cues {
		content := vtt.NormalizeText(c.Text)
		if content == "" || filters.Match(content) {
			continue
		}
		key := dedupKey(content)
		// Punctuation- or symbol-only content reduces to an empty key;
		// an empty key never counts as a duplicate of anything.
		if key != "" {
			switch mode {
			case DedupeConsecutive:
				if key == lastKey {
					continue
				}
			case DedupeUnique:
				if _, dup := seen[key]; dup {
					continue
				}
			}
		}
		entries = append(entries, Entry{
			Range:   c.Range(),
			Start:   c.Start.Seconds(),
			End:     c.End.Seconds(),
			Speaker: speaker,
			Content: content,
		})
		lastKey = key
		seen[key] = struct{}{}
	}
	return entries, nil
}

// speakerLabel is the name entries carry: the character label, or the
// role for narrator-style speakers, falling back to the player name.
func speakerLabel(cfg SpeakerConfig) string {
	if isNarrator(cfg.Role) && cfg.Role != "" {
		return cfg.Role
	}
	if cfg.Character != "" {
		return cfg.Character
	}
	return cfg.Player
}

func isNarrator(role string) bool {
	_, ok := narratorRoles[strings.ToLower(role)]
	return ok
}

// Merge parses all sources and returns the globally ordered,
// deduplicated entry sequence.
func Merge(configs []SpeakerConfig, opts Options) ([]Entry, error) {
	filters, err := CompileFilters(opts.SkipFilters)
	if err != nil {
		return nil, err
	}

	// Fail fast before parsing anything.
	for _, cfg := range configs {
		if _, err := os.Stat(cfg.Source); err != nil {
			return nil, pipeline.NewCombineError(
				fmt.Sprintf("source file missing for speaker %s: %s", speakerLabel(cfg), cfg.Source), err)
		}
	}

	var all []Entry
	for _, cfg := range configs {
		entries, err := parseSource(cfg, opts.Dedupe, filters)
		if err != nil {
			return nil, pipeline.NewCombineError(
				fmt.Sprintf("parse failed for speaker %s", speakerLabel(cfg)), err)
		}
		if opts.Log != nil {
			opts.Log.Info("source parsed", "speaker", speakerLabel(cfg), "entries", len(entries))
		}
		all = append(all, entries...)
	}

	// Stable sort keeps source-then-parse order for equal start times.
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	all = globalDedup(all)
	if opts.Log != nil {
		warnNearDuplicates(opts.Log, all)
	}
	return all, nil
}

// globalDedup drops later entries repeating an earlier (speaker, key)
// pair; the earliest occurrence by start time survives. Entries with an
// empty key pass through untouched.
func globalDedup(entries []Entry) []Entry {
	type pairKey struct{ speaker, key string }
	seen := map[pairKey]struct{}{}
	out := entries[:0]
	for _, e := range entries {
		key := dedupKey(e.Content)
		if key == "" {
			out = append(out, e)
			continue
		}
		k := pairKey{e.Speaker, key}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Summary renders the header block shared by every chunk file.
func Summary(configs []SpeakerConfig) string {
	lines := []string{"Summary:"}
	emitted := map[string]struct{}{}
	for _, cfg := range configs {
		label := cfg.Character
		if isNarrator(cfg.Role) {
			label = cfg.Role
		}
		line := fmt.Sprintf("%s - %s - %s", cfg.Player, label, cfg.Description)
		if _, dup := emitted[line]; dup {
			continue
		}
		emitted[line] = struct{}{}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ChunkSizes computes contiguous chunk lengths for n entries. Too few
// entries, or a request that would drop any chunk below the minimum,
// forces a single chunk. The remainder always lands in the final chunk.
func ChunkSizes(n, requested int) []int {
	if requested <= 1 || n < minChunkEntries || n/requested < minChunkEntries {
		return []int{n}
	}
	size := n / requested
	sizes := make([]int, requested)
	for i := range sizes {
		sizes[i] = size
	}
	sizes[requested-1] += n - size*requested
	return sizes
}

// FormatEntry renders one transcript line.
func FormatEntry(e Entry, includeTimestamps bool) string {
	if includeTimestamps {
		return fmt.Sprintf("%s: %s [%s]", e.Speaker, e.Content, e.Range)
	}
	return fmt.Sprintf("%s: %s", e.Speaker, e.Content)
}

// Run merges the configured sources and writes the combined transcript
// to outputPath, returning the written file paths. With more than one
// chunk, files are named "<stem>-<i><ext>".
func Run(configs []SpeakerConfig, opts Options, outputPath string) ([]string, error) {
	if len(configs) == 0 {
		return nil, pipeline.NewCombineError("no speaker sources configured", nil)
	}

	entries, err := Merge(configs, opts)
	if err != nil {
		return nil, err
	}
	summary := Summary(configs)

	sizes := ChunkSizes(len(entries), opts.Chunks)
	var written []string
	offset := 0
	for i, size := range sizes {
		chunk := entries[offset : offset+size]
		offset += size

		var b strings.Builder
		b.WriteString(summary)
		b.WriteString("\n\n")
		for _, e := range chunk {
			b.WriteString(FormatEntry(e, opts.IncludeTimestamps))
			b.WriteByte('\n')
		}

		path := chunkPath(outputPath, i, len(sizes))
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return nil, pipeline.NewCombineError(fmt.Sprintf("write %s", path), err)
		}
		written = append(written, path)
	}
	return written, nil
}

func chunkPath(outputPath string, idx, total int) string {
	if total <= 1 {
		return outputPath
	}
	ext := filepath.Ext(outputPath)
	stem := strings.TrimSuffix(outputPath, ext)
	return fmt.Sprintf("%s-%d%s", stem, idx+1, ext)
}
