package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// GeminiBackend transcribes drawings with a Google Gemini vision model.
type GeminiBackend struct {
	Model string
}

// NewGeminiBackend creates a Gemini backend. An empty model defaults to
// gemini-1.5-flash.
func NewGeminiBackend(model string) *GeminiBackend {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiBackend{Model: model}
}

func (b *GeminiBackend) Name() string { return "gemini" }

// Recognize sends the PNG inline. The SDK client lives for one call so the
// API key stays scoped to the run.
func (b *GeminiBackend) Recognize(ctx context.Context, img models.PreprocessedImage, creds Credentials) (string, float64, error) {
	if creds.APIKey == "" {
		return "", 0, fmt.Errorf("%w: no API key provided", ErrAuth)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(creds.APIKey))
	if err != nil {
		return "", 0, translateGeminiError(err)
	}
	defer client.Close()

	model := client.GenerativeModel(b.Model)
	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", img.Data),
		genai.Text(transcriptionPrompt),
	)
	if err != nil {
		return "", 0, translateGeminiError(err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String(), 0, nil
}

func translateGeminiError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuth, apiErr)
		default:
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, apiErr)
		}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
