package pipeline

import (
	"fmt"
	"time"
)

// ErrorCode classifies a pipeline failure by the stage that produced it.
type ErrorCode string

const (
	// VALIDATION_FAILED means the input was rejected before any work.
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"

	// CONVERSION_FAILED means ffmpeg normalization failed.
	CONVERSION_FAILED ErrorCode = "CONVERSION_FAILED"

	// SEGMENTATION_FAILED means speech detection failed or found nothing.
	SEGMENTATION_FAILED ErrorCode = "SEGMENTATION_FAILED"

	// TRANSCRIPTION_FAILED means every segment of a file failed to transcribe.
	TRANSCRIPTION_FAILED ErrorCode = "TRANSCRIPTION_FAILED"

	// COMBINE_FAILED means the merge over per-speaker outputs failed.
	COMBINE_FAILED ErrorCode = "COMBINE_FAILED"
)

// Error is a stage-coded pipeline failure.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a coded pipeline error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewValidationError rejects an input file.
func NewValidationError(message string) *Error {
	return NewError(VALIDATION_FAILED, message, nil)
}

// NewConversionError wraps an ffmpeg normalization failure.
func NewConversionError(file string, cause error) *Error {
	return NewError(CONVERSION_FAILED, fmt.Sprintf("audio conversion failed for %s", file), cause)
}

// NewSegmentationError wraps a speech detection failure.
func NewSegmentationError(file string, cause error) *Error {
	return NewError(SEGMENTATION_FAILED, fmt.Sprintf("speech detection failed for %s", file), cause)
}

// NewTranscriptionError wraps a whole-file transcription failure.
func NewTranscriptionError(file string, cause error) *Error {
	return NewError(TRANSCRIPTION_FAILED, fmt.Sprintf("transcription failed for %s", file), cause)
}

// NewCombineError wraps a transcript merge failure.
func NewCombineError(message string, cause error) *Error {
	return NewError(COMBINE_FAILED, message, cause)
}
