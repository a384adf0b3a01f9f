package ocr

import (
	"fmt"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// BackendFromConfig builds the configured backend implementation.
func BackendFromConfig(cfg models.OCRConfig) (Backend, error) {
	switch cfg.Backend {
	case "openai":
		return NewOpenAIBackend(cfg.Model, ""), nil
	case "gemini":
		return NewGeminiBackend(cfg.Model), nil
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http backend requires an endpoint")
		}
		return NewHTTPBackend(cfg.Endpoint), nil
	case "stub":
		return &StubBackend{Text: "stub backend: no OCR engine configured"}, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q (want openai, gemini, http or stub)", cfg.Backend)
	}
}
