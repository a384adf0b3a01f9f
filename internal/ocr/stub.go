package ocr

import (
	"context"
	"sync/atomic"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// StubBackend returns a fixed transcription for every image. It replaces the
// real backend in tests and in offline mode, where no OCR engine is
// installed.
type StubBackend struct {
	Text       string
	Confidence float64

	calls atomic.Int64
}

func (b *StubBackend) Name() string { return "stub" }

func (b *StubBackend) Recognize(_ context.Context, _ models.PreprocessedImage, _ Credentials) (string, float64, error) {
	b.calls.Add(1)
	return b.Text, b.Confidence, nil
}

// Calls reports how many times Recognize ran, for retry assertions.
func (b *StubBackend) Calls() int {
	return int(b.calls.Load())
}
