// Package pipeline runs the per-track transcription sequence: validate,
// normalize, detect speech, transcribe segment by segment, and write the
// caption file plus a run manifest. Progress is published as a tagged
// status after every transition; any failure becomes a terminal error
// status with a stage-coded message.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/audio"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/discover"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/metrics"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/status"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/vad"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/vtt"
	"github.com/tabletop-tools/sessionscribe/cmd/sessionscribe/internal/whisper"
	"github.com/tabletop-tools/sessionscribe/pkg/logger"
)

// Runner executes the pipeline for single files.
type Runner struct {
	Audio       *audio.Processor
	Detector    vad.Detector
	Transcriber whisper.Transcriber
	Log         *slog.Logger

	// SampleRate is recorded in the manifest.
	SampleRate int

	// KeepSegments leaves extracted segment files on disk after a
	// successful run instead of removing them.
	KeepSegments bool
}

// Result summarizes one completed per-track run.
type Result struct {
	CaptionFile  string
	ManifestFile string
	Segments     int
	Failed       int
}

// Run processes one audio file end to end, publishing progress through
// pub. On failure the terminal error status is published and the coded
// error returned.
func (r *Runner) Run(ctx context.Context, input, outputDir string, pub *status.Publisher) (*Result, error) {
	res, err := r.run(ctx, input, outputDir, pub)
	if err != nil {
		pub.Publish(status.Failed(err.Error()))
		metrics.RecordFile("error")
		return nil, err
	}
	pub.Publish(status.Status{State: status.StateDone})
	metrics.RecordFile("done")
	return res, nil
}

func (r *Runner) run(ctx context.Context, input, outputDir string, pub *status.Publisher) (*Result, error) {
	log := r.Log.With("file", filepath.Base(input))

	if _, err := os.Stat(input); err != nil {
		return nil, NewValidationError(fmt.Sprintf("input not readable: %v", err))
	}
	if !discover.Supported(input) {
		return nil, NewValidationError(fmt.Sprintf("unsupported audio format: %s", filepath.Ext(input)))
	}
	if err := os.MkdirAll(SegmentsDir(outputDir), 0o755); err != nil {
		return nil, NewValidationError(fmt.Sprintf("create output dir: %v", err))
	}

	pub.Publish(status.Status{State: status.StateConverting})
	stageStart := time.Now()
	canonical, err := r.Audio.EnsureCanonical(ctx, input)
	if err != nil {
		return nil, NewConversionError(filepath.Base(input), err)
	}
	metrics.RecordStageDuration("convert", time.Since(stageStart).Seconds())
	logger.LogStage(log, "convert", "success", filepath.Base(input), time.Since(stageStart).Milliseconds(), "")
	log.Debug("audio normalized", "canonical", canonical)

	pub.Publish(status.Status{State: status.StateSplitting})
	stageStart = time.Now()
	segments, err := r.Detector.Detect(ctx, canonical)
	if err != nil {
		return nil, NewSegmentationError(filepath.Base(input), err)
	}
	metrics.RecordStageDuration("vad", time.Since(stageStart).Seconds())
	logger.LogStage(log, "split", "success", filepath.Base(input), time.Since(stageStart).Milliseconds(), "")
	log.Debug("speech detected", "segments", len(segments))

	pub.Publish(status.Status{State: status.StateLoadingModel})
	stageStart = time.Now()

	manifest := NewManifest(input, r.SampleRate)
	var cues []vtt.Cue
	failed := 0
	for i, seg := range segments {
		pub.Publish(status.Transcribing(i+1, len(segments)))

		segPath := filepath.Join(SegmentsDir(outputDir), fmt.Sprintf("segment_%03d.wav", i))
		utts, segErr := r.transcribeSegment(ctx, canonical, seg, segPath)
		entry := ManifestSegment{Index: i, Start: seg.Start, End: seg.End}
		if segErr != nil {
			if ctx.Err() != nil {
				return nil, NewTranscriptionError(filepath.Base(input), ctx.Err())
			}
			log.Warn("segment failed, skipping", "segment", i, "error", segErr)
			failed++
			entry.Skipped = true
			entry.Error = segErr.Error()
			manifest.Segments = append(manifest.Segments, entry)
			continue
		}

		entry.Utterances = len(utts)
		entry.Confidence = averageConfidence(utts)
		manifest.Segments = append(manifest.Segments, entry)
		for _, u := range utts {
			cues = append(cues, vtt.Cue{
				Start: vtt.FromSeconds(u.Start),
				End:   vtt.FromSeconds(u.End),
				Text:  u.Text,
			})
		}
	}
	metrics.RecordStageDuration("transcribe", time.Since(stageStart).Seconds())
	metrics.RecordSegments(len(segments)-failed, failed)
	logger.LogStage(log, "transcribe", "success", filepath.Base(input), time.Since(stageStart).Milliseconds(), "")
	if failed == len(segments) {
		return nil, NewTranscriptionError(filepath.Base(input),
			fmt.Errorf("all %d segments failed", len(segments)))
	}

	captionPath := CaptionPath(outputDir, input)
	if err := vtt.WriteFile(captionPath, cues); err != nil {
		return nil, NewTranscriptionError(filepath.Base(input), err)
	}
	manifest.CaptionFile = captionPath
	manifestPath := ManifestPath(outputDir)
	if err := manifest.Save(manifestPath); err != nil {
		return nil, NewTranscriptionError(filepath.Base(input), err)
	}

	if !r.KeepSegments {
		if err := os.RemoveAll(SegmentsDir(outputDir)); err != nil {
			log.Warn("segment cleanup failed", "error", err)
		}
	}

	log.Info("track transcribed", "caption", captionPath, "segments", len(segments), "failed", failed)
	return &Result{
		CaptionFile:  captionPath,
		ManifestFile: manifestPath,
		Segments:     len(segments),
		Failed:       failed,
	}, nil
}

func (r *Runner) transcribeSegment(ctx context.Context, canonical string, seg vad.Segment, segPath string) ([]whisper.Utterance, error) {
	if err := r.Audio.Extract(ctx, canonical, seg.Start, seg.End, segPath); err != nil {
		return nil, err
	}
	return r.Transcriber.Transcribe(ctx, segPath, seg.Start)
}

func averageConfidence(utts []whisper.Utterance) float64 {
	if len(utts) == 0 {
		return 0
	}
	sum := 0.0
	for _, u := range utts {
		sum += u.Confidence
	}
	return sum / float64(len(utts))
}
