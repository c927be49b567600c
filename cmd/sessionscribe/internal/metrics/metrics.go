// Package metrics provides Prometheus metrics for transcription runs.
// Runs are short-lived batch processes, so metrics are exported as a
// textfile at the end of a run instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var registry = prometheus.NewRegistry()

var (
	// filesTotal records processed files by outcome ("done", "error").
	filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionscribe_files_total",
			Help: "Total number of audio files processed, by outcome",
		},
		[]string{"outcome"},
	)

	// segmentsTotal records transcribed speech segments by outcome
	// ("done", "skipped").
	segmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionscribe_segments_total",
			Help: "Total number of speech segments processed, by outcome",
		},
		[]string{"outcome"},
	)

	// stageDuration records per-stage wall time.
	// Labels:
	//   - stage: Pipeline stage ("convert", "vad", "transcribe", "combine")
	// Buckets: 0.5s .. 1h, sized for model inference on long tracks.
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessionscribe_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.5, 2, 10, 30, 60, 300, 900, 3600},
		},
		[]string{"stage"},
	)
)

func init() {
	registry.MustRegister(filesTotal)
	registry.MustRegister(segmentsTotal)
	registry.MustRegister(stageDuration)
}

// RecordFile records one processed file by outcome.
func RecordFile(outcome string) {
	filesTotal.WithLabelValues(outcome).Inc()
}

// RecordSegments records segment counts for one file.
func RecordSegments(done, skipped int) {
	segmentsTotal.WithLabelValues("done").Add(float64(done))
	segmentsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordStageDuration records one stage's wall time in seconds.
func RecordStageDuration(stage string, seconds float64) {
	stageDuration.WithLabelValues(stage).Observe(seconds)
}

// WriteTextfile gathers all run metrics and writes them in the
// Prometheus text exposition format, for pickup by a node-exporter
// textfile collector or ad-hoc inspection.
func WriteTextfile(path string) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()
	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
