package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// HTTPBackend talks to a generic OCR HTTP service: POST a base64 PNG with a
// bearer key, receive raw text back. This is the shape of the LlamaOCR-style
// endpoints the service was originally paired with.
type HTTPBackend struct {
	Endpoint string
	client   *http.Client
}

// NewHTTPBackend creates a backend for the given endpoint URL. The call
// deadline comes from the caller's context, not the HTTP client.
func NewHTTPBackend(endpoint string) *HTTPBackend {
	return &HTTPBackend{
		Endpoint: endpoint,
		client:   &http.Client{},
	}
}

func (b *HTTPBackend) Name() string { return "http" }

type httpOCRRequest struct {
	Image string `json:"image"`
	MIME  string `json:"mime"`
}

type httpOCRResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognize sends the image and translates wire failures into the package
// error taxonomy.
func (b *HTTPBackend) Recognize(ctx context.Context, img models.PreprocessedImage, creds Credentials) (string, float64, error) {
	if creds.APIKey == "" {
		return "", 0, fmt.Errorf("%w: no API key provided", ErrAuth)
	}

	payload, err := json.Marshal(httpOCRRequest{
		Image: base64.StdEncoding.EncodeToString(img.Data),
		MIME:  "image/png",
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", 0, context.DeadlineExceeded
		}
		return "", 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to read response: %v", ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", 0, fmt.Errorf("%w: backend returned status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", 0, fmt.Errorf("%w: backend returned status %d: %s", ErrBackendUnavailable, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return "", 0, fmt.Errorf("%w: unexpected status %d: %s", ErrBackendUnavailable, resp.StatusCode, body)
	}

	var parsed httpOCRResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("%w: malformed response: %v", ErrBackendUnavailable, err)
	}

	return parsed.Text, parsed.Confidence, nil
}
