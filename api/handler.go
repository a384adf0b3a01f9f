package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pipeworks/profile-ocr-service/internal/db"
	"github.com/pipeworks/profile-ocr-service/internal/export"
	"github.com/pipeworks/profile-ocr-service/internal/models"
	"github.com/pipeworks/profile-ocr-service/internal/ocr"
	"github.com/pipeworks/profile-ocr-service/internal/parser"
	"github.com/pipeworks/profile-ocr-service/internal/pipeline"
	"github.com/pipeworks/profile-ocr-service/internal/preprocess"
	"github.com/pipeworks/profile-ocr-service/internal/services"
	"github.com/pipeworks/profile-ocr-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for drawing extraction.
type Handler struct {
	config *models.Config
	pipe   *pipeline.Pipeline
}

// NewHandler wires the pipeline from configuration.
func NewHandler(config *models.Config) (*Handler, error) {
	backend, err := ocr.BackendFromConfig(config.OCR)
	if err != nil {
		return nil, err
	}
	client := ocr.NewClient(backend,
		time.Duration(config.OCR.TimeoutSeconds)*time.Second,
		config.OCR.MaxAttempts)

	hints, err := parser.HintsFromConfig(config.Parser)
	if err != nil {
		return nil, err
	}

	opts := preprocess.DefaultOptions()
	if config.Preprocess.MaxDimension > 0 {
		opts = preprocess.Options{
			Grayscale:      config.Preprocess.Grayscale,
			ContrastFactor: config.Preprocess.ContrastFactor,
			MaxDimension:   config.Preprocess.MaxDimension,
		}
	}

	format := export.Format(config.Export.Format)
	if format == "" {
		format = export.FormatCSV
	}

	pipe := pipeline.New(client,
		ocr.Credentials{APIKey: config.OCR.APIKey},
		opts, hints, format)

	return &Handler{config: config, pipe: pipe}, nil
}

// SetupRoutes configures the HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/process-drawing", h.ProcessDrawing).Methods("POST")
	router.HandleFunc("/api/extractions", h.GetExtractions).Methods("GET")
	router.HandleFunc("/api/extraction/{id}", h.GetExtraction).Methods("GET")
	router.HandleFunc("/api/extraction/{id}", h.DeleteExtraction).Methods("DELETE")
	router.HandleFunc("/api/extraction/{id}/export", h.ExportExtraction).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse is the health check response structure.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Backend   string            `json:"backend"`
	Database  bool              `json:"database"`
	Storage   bool              `json:"storage"`
	Config    map[string]string `json:"config"`
}

// Health reports service and dependency status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Backend:   h.config.OCR.Backend,
		Database:  db.Available(),
		Storage:   storage.Available(),
		Config: map[string]string{
			"exportFormat": h.config.Export.Format,
		},
	})
}

// ProcessDrawing accepts a multipart drawing upload, runs the pipeline and
// persists the result when a database is configured.
func (h *Handler) ProcessDrawing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()
	startTime := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "file too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "no file provided (use 'file' or 'image' field)")
			return
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	runID := uuid.NewString()
	raw, err := preprocess.Decode(runID, data)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "uploaded file is not a supported image")
		return
	}

	result, err := h.pipe.Run(ctx, raw)
	if err != nil {
		h.sendPipelineError(w, err, startTime)
		return
	}

	ext := &models.Extraction{
		ID:         runID,
		Filename:   header.Filename,
		Schema:     result.Table.Schema,
		RowCount:   len(result.Table.Records),
		Table:      result.Table,
		RawText:    result.OCR.Text,
		Confidence: result.OCR.Confidence,
		Status:     "completed",
		CreatedAt:  time.Now(),
	}

	validation := services.ValidateProfile(result.Table)
	if validation.NeedsReview || !validation.Valid {
		ext.Status = "needs_review"
	}

	if storage.Available() {
		objectPath, err := storage.UploadDrawing(ctx,
			fmt.Sprintf("%s-%s", runID, header.Filename),
			bytes.NewReader(data), int64(len(data)), raw.Format.MIME())
		if err == nil {
			ext.ImagePath = objectPath
		}
	}

	if db.Available() {
		if err := db.SaveExtraction(ctx, ext); err != nil {
			// The extraction succeeded; persistence failure is reported but
			// does not discard the result.
			ext.Status = "unsaved"
		}
	}

	json.NewEncoder(w).Encode(models.ProcessResponse{
		Success:       true,
		Extraction:    ext,
		OCRDuration:   result.OCRDuration.Seconds(),
		TotalDuration: time.Since(startTime).Seconds(),
	})
}

// GetExtractions lists recent runs.
func (h *Handler) GetExtractions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	extractions, err := db.GetExtractions(r.Context(), 50)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list extractions")
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"extractions": extractions,
		"count":       len(extractions),
	})
}

// GetExtraction returns one run including its table.
func (h *Handler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	id := mux.Vars(r)["id"]
	ext, err := db.GetExtractionByID(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "extraction not found")
		return
	}

	if ext.ImagePath != "" && storage.Available() {
		if url, err := storage.GetPresignedURL(r.Context(), ext.ImagePath); err == nil {
			ext.ImagePath = url
		}
	}
	json.NewEncoder(w).Encode(ext)
}

// ExportExtraction regenerates an export from a stored run.
func (h *Handler) ExportExtraction(w http.ResponseWriter, r *http.Request) {
	if !db.Available() {
		w.Header().Set("Content-Type", "application/json")
		h.sendError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = h.config.Export.Format
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	ext, err := db.GetExtractionByID(r.Context(), id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		h.sendError(w, http.StatusNotFound, "extraction not found")
		return
	}

	data, err := export.Export(ext.Table, format)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, export.ErrEmptyTable) {
			h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		} else {
			h.sendError(w, http.StatusInternalServerError, "export failed")
		}
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="extraction-%s.%s"`, id, format))
	w.Write(data)
}

// DeleteExtraction removes a run and its stored drawing.
func (h *Handler) DeleteExtraction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !db.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	id := mux.Vars(r)["id"]
	ext, err := db.GetExtractionByID(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "extraction not found")
		return
	}

	if err := db.DeleteExtraction(r.Context(), id); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete extraction")
		return
	}
	if ext.ImagePath != "" && storage.Available() {
		storage.DeleteDrawing(r.Context(), ext.ImagePath)
	}

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (h *Handler) sendPipelineError(w http.ResponseWriter, err error, startTime time.Time) {
	status := http.StatusInternalServerError
	stage := ""

	var pErr *pipeline.Error
	if errors.As(err, &pErr) {
		stage = string(pErr.Stage)
	}
	switch {
	case errors.Is(err, preprocess.ErrInvalidImage):
		status = http.StatusBadRequest
	case errors.Is(err, ocr.ErrAuth):
		status = http.StatusBadGateway
	case errors.Is(err, ocr.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, ocr.ErrBackendUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, ocr.ErrEmptyResult), errors.Is(err, parser.ErrNoRecords):
		status = http.StatusUnprocessableEntity
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ProcessResponse{
		Success:       false,
		Error:         err.Error(),
		Stage:         stage,
		TotalDuration: time.Since(startTime).Seconds(),
	})
}

func (h *Handler) sendError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
