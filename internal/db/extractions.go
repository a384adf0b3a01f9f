package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// SaveExtraction persists one pipeline run. The table is stored as JSON so
// exports can be regenerated later without re-running OCR.
func SaveExtraction(ctx context.Context, ext *models.Extraction) error {
	tableJSON, err := json.Marshal(ext.Table)
	if err != nil {
		return fmt.Errorf("failed to serialize table: %w", err)
	}
	schemaJSON, err := json.Marshal(ext.Schema)
	if err != nil {
		return fmt.Errorf("failed to serialize schema: %w", err)
	}

	query := `
		INSERT INTO extractions (
			id, filename, image_path, schema, row_count,
			table_json, raw_text, confidence, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	if ext.ID == "" {
		ext.ID = uuid.NewString()
	}
	return Pool.QueryRow(ctx, query,
		ext.ID, ext.Filename, ext.ImagePath, schemaJSON, ext.RowCount,
		tableJSON, ext.RawText, ext.Confidence, ext.Status,
	).Scan(&ext.CreatedAt)
}

// GetExtractions lists recent runs, newest first, without their row payloads.
func GetExtractions(ctx context.Context, limit int) ([]models.Extraction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, filename, COALESCE(image_path, ''), schema, row_count,
		       COALESCE(confidence, 0), COALESCE(status, ''), created_at
		FROM extractions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var extractions []models.Extraction
	for rows.Next() {
		var ext models.Extraction
		var schemaJSON []byte
		err := rows.Scan(
			&ext.ID, &ext.Filename, &ext.ImagePath, &schemaJSON,
			&ext.RowCount, &ext.Confidence, &ext.Status, &ext.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(schemaJSON, &ext.Schema); err != nil {
			return nil, fmt.Errorf("corrupt schema for extraction %s: %w", ext.ID, err)
		}
		extractions = append(extractions, ext)
	}
	return extractions, rows.Err()
}

// GetExtractionByID retrieves one run including its table rows.
func GetExtractionByID(ctx context.Context, id string) (*models.Extraction, error) {
	query := `
		SELECT id, filename, COALESCE(image_path, ''), schema, row_count,
		       table_json, COALESCE(raw_text, ''), COALESCE(confidence, 0),
		       COALESCE(status, ''), created_at, updated_at
		FROM extractions
		WHERE id = $1
	`

	var ext models.Extraction
	var schemaJSON, tableJSON []byte
	var updatedAt *time.Time
	err := Pool.QueryRow(ctx, query, id).Scan(
		&ext.ID, &ext.Filename, &ext.ImagePath, &schemaJSON, &ext.RowCount,
		&tableJSON, &ext.RawText, &ext.Confidence, &ext.Status,
		&ext.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	ext.UpdatedAt = updatedAt

	if err := json.Unmarshal(schemaJSON, &ext.Schema); err != nil {
		return nil, fmt.Errorf("corrupt schema for extraction %s: %w", id, err)
	}
	if len(tableJSON) > 0 {
		var table models.Table
		if err := json.Unmarshal(tableJSON, &table); err != nil {
			return nil, fmt.Errorf("corrupt table for extraction %s: %w", id, err)
		}
		ext.Table = &table
	}
	return &ext, nil
}

// DeleteExtraction removes one run.
func DeleteExtraction(ctx context.Context, id string) error {
	tag, err := Pool.Exec(ctx, `DELETE FROM extractions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("extraction %s not found", id)
	}
	return nil
}
