package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

const (
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts bounds retries on transient failures.
	DefaultMaxAttempts = 3
)

// Client is the single external-service boundary of the pipeline. It wraps a
// Backend with a per-call timeout and bounded exponential-backoff retry for
// transient failures. Auth failures and timeouts are surfaced immediately.
type Client struct {
	backend     Backend
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
}

// NewClient builds a client around a backend. Zero timeout or attempts fall
// back to the defaults.
func NewClient(backend Backend, timeout time.Duration, maxAttempts int) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		backend:     backend,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffBase: 500 * time.Millisecond,
	}
}

// Extract sends a preprocessed image to the backend and returns its raw text.
// Transient backend failures are retried up to the attempt budget with
// exponentially increasing delay; retries are invisible to callers except via
// elapsed time.
func (c *Client) Extract(ctx context.Context, img models.PreprocessedImage, creds Credentials) (models.OCRResult, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, confidence, err := c.backend.Recognize(callCtx, img, creds)
		timedOut := callCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			if strings.TrimSpace(text) == "" {
				return models.OCRResult{}, fmt.Errorf("%w (backend %s, source %s)", ErrEmptyResult, c.backend.Name(), img.SourceID)
			}
			return models.OCRResult{
				SourceID:   img.SourceID,
				Text:       text,
				Confidence: confidence,
			}, nil
		}

		if errors.Is(err, ErrAuth) {
			return models.OCRResult{}, err
		}
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			return models.OCRResult{}, fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, err)
		}
		if ctx.Err() != nil {
			return models.OCRResult{}, ctx.Err()
		}

		lastErr = err
		if attempt < c.maxAttempts {
			delay := c.backoffBase << (attempt - 1)
			slog.Warn("OCR backend call failed, retrying",
				"backend", c.backend.Name(),
				"attempt", attempt,
				"delay", delay,
				"error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return models.OCRResult{}, ctx.Err()
			}
		}
	}

	return models.OCRResult{}, fmt.Errorf("%w after %d attempts: %v", ErrBackendUnavailable, c.maxAttempts, lastErr)
}

// BackendName reports which backend the client is bound to.
func (c *Client) BackendName() string {
	return c.backend.Name()
}
