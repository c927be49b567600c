package combine

import (
	"log/slog"
	"strings"

	"github.com/go-dedup/simhash"
)

// Near-duplicate detection is diagnostic only: entries that survive
// deduplication but look like retakes of a nearby line are logged as
// warnings, never dropped.

// similarityThreshold is the maximum hamming distance between two
// fingerprints considered near-duplicates.
const similarityThreshold = 3

// similarityWindow bounds how many preceding entries each entry is
// compared against.
const similarityWindow = 20

type entryFeatureSet struct {
	text string
}

// GetFeatures extracts word-level bigram features. Punctuation is
// stripped first so retakes differing only in punctuation fingerprint
// identically.
func (e entryFeatureSet) GetFeatures() []simhash.Feature {
	words := strings.Fields(dedupKey(e.text))
	if len(words) == 0 {
		return nil
	}
	if len(words) == 1 {
		return []simhash.Feature{simhash.NewFeature([]byte(words[0]))}
	}
	features := make([]simhash.Feature, 0, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		features = append(features, simhash.NewFeature([]byte(words[i]+" "+words[i+1])))
	}
	return features
}

// Fingerprint computes the 64-bit simhash of an entry's content.
func Fingerprint(content string) uint64 {
	sh := simhash.NewSimhash()
	return sh.GetSimhash(entryFeatureSet{text: content})
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

func warnNearDuplicates(log *slog.Logger, entries []Entry) {
	if len(entries) < 2 {
		return
	}
	hashes := make([]uint64, len(entries))
	for i, e := range entries {
		hashes[i] = Fingerprint(e.Content)
	}
	for i := 1; i < len(entries); i++ {
		lo := i - similarityWindow
		if lo < 0 {
			lo = 0
		}
		for j := lo; j < i; j++ {
			if entries[i].Speaker != entries[j].Speaker {
				continue
			}
			if hammingDistance(hashes[i], hashes[j]) <= similarityThreshold {
				log.Warn("near-duplicate entries kept",
					"speaker", entries[i].Speaker,
					"first", entries[j].Range,
					"second", entries[i].Range)
				break
			}
		}
	}
}
