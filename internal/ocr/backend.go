package ocr

import (
	"context"
	"errors"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// Error taxonomy for the OCR boundary. No raw backend errors propagate past
// this package; every failure is wrapped in one of these sentinels.
var (
	// ErrAuth marks missing or rejected credentials. Never retried.
	ErrAuth = errors.New("invalid or missing OCR credentials")
	// ErrBackendUnavailable marks network or service failures. Eligible for
	// bounded retry.
	ErrBackendUnavailable = errors.New("OCR backend unavailable")
	// ErrTimeout marks a call that exceeded the configured deadline.
	ErrTimeout = errors.New("OCR backend call timed out")
	// ErrEmptyResult marks a successful call that produced no text.
	ErrEmptyResult = errors.New("OCR backend returned no text")
)

// Credentials authenticate one extraction run against a backend. They are
// passed per call rather than held as ambient process state.
type Credentials struct {
	APIKey string
}

// Backend recognizes text in a preprocessed drawing. Implementations
// translate their wire-level failures into the package error taxonomy; the
// returned confidence is zero when the backend does not report one.
type Backend interface {
	Name() string
	Recognize(ctx context.Context, img models.PreprocessedImage, creds Credentials) (text string, confidence float64, err error)
}

// transcriptionPrompt is shared by the vision backends. Profile sheets carry
// their data in tabular callout blocks, so the model is asked for markdown
// tables which the parser understands natively.
const transcriptionPrompt = `Transcribe all text visible in this scanned engineering drawing.
If the drawing contains a data table (stations, chainages, levels, pipe callouts),
reproduce it as a markdown table with one header row.
Return only the transcription, no commentary.`
