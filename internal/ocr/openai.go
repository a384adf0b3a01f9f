package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// OpenAIBackend transcribes drawings with an OpenAI vision model.
type OpenAIBackend struct {
	Model   string
	BaseURL string // optional, for Azure/compatible endpoints
}

// NewOpenAIBackend creates a vision backend. An empty model defaults to
// gpt-4o.
func NewOpenAIBackend(model, baseURL string) *OpenAIBackend {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIBackend{Model: model, BaseURL: baseURL}
}

func (b *OpenAIBackend) Name() string { return "openai" }

// Recognize sends the PNG as an inline data URL. The SDK client is built per
// call so credentials stay scoped to one pipeline run.
func (b *OpenAIBackend) Recognize(ctx context.Context, img models.PreprocessedImage, creds Credentials) (string, float64, error) {
	if creds.APIKey == "" {
		return "", 0, fmt.Errorf("%w: no API key provided", ErrAuth)
	}

	cfg := openai.DefaultConfig(creds.APIKey)
	if b.BaseURL != "" {
		cfg.BaseURL = b.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.Data)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: transcriptionPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
	if err != nil {
		return "", 0, translateOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, nil // empty result is handled by the client
	}
	return resp.Choices[0].Message.Content, 0, nil
}

func translateOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuth, apiErr)
		default:
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, apiErr)
		}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
