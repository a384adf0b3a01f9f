package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pipeworks/profile-ocr-service/api"
	"github.com/pipeworks/profile-ocr-service/internal/auth"
	"github.com/pipeworks/profile-ocr-service/internal/db"
	"github.com/pipeworks/profile-ocr-service/internal/models"
	"github.com/pipeworks/profile-ocr-service/internal/storage"
)

func main() {
	if err := auth.Init(); err != nil {
		slog.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}
	slog.Info("JWT authentication initialized")

	if err := db.Init(); err != nil {
		slog.Warn("database not available, running without persistence", "error", err)
	} else {
		defer db.Close()
		slog.Info("database connection pool initialized")
	}

	if err := storage.Init(); err != nil {
		slog.Warn("object storage not available, drawings will not be stored", "error", err)
	} else {
		slog.Info("object storage initialized")
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	handler, err := api.NewHandler(config)
	if err != nil {
		slog.Error("failed to build handler", "error", err)
		os.Exit(1)
	}
	router := handler.SetupRoutes()

	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// JWT middleware skips /health and /api/login.
	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	slog.Info("starting profile OCR service",
		"version", api.Version,
		"addr", addr,
		"backend", config.OCR.Backend,
		"database", db.Available(),
		"storage", storage.Available())

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment variables take precedence over the file.
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if backend := os.Getenv("OCR_BACKEND"); backend != "" {
		config.OCR.Backend = backend
	}
	if model := os.Getenv("OCR_MODEL"); model != "" {
		config.OCR.Model = model
	}
	if endpoint := os.Getenv("OCR_ENDPOINT"); endpoint != "" {
		config.OCR.Endpoint = endpoint
	}
	if apiKey := os.Getenv("OCR_API_KEY"); apiKey != "" {
		config.OCR.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.OCR.Backend == "openai" {
		config.OCR.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" && config.OCR.Backend == "gemini" {
		config.OCR.APIKey = apiKey
	}
	if format := os.Getenv("EXPORT_FORMAT"); format != "" {
		config.Export.Format = format
	}

	return &config, nil
}
