package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ManifestSegment records one transcribed speech interval.
type ManifestSegment struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Utterances int     `json:"utterances"`
	Confidence float64 `json:"confidence,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Manifest is the durable record of one per-track run.
type Manifest struct {
	RunID        string            `json:"run_id"`
	OriginalFile string            `json:"original_file"`
	SampleRate   int               `json:"sample_rate"`
	Segments     []ManifestSegment `json:"segments"`
	CaptionFile  string            `json:"caption_file"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewManifest creates a manifest with a fresh run id.
func NewManifest(originalFile string, sampleRate int) *Manifest {
	return &Manifest{
		RunID:        uuid.NewString(),
		OriginalFile: originalFile,
		SampleRate:   sampleRate,
		CreatedAt:    time.Now().UTC(),
	}
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
