package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// ValidationError is a single blocking problem with an extracted table.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

// ValidationWarning is a non-critical issue worth reviewing.
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ComputedValues summarizes the table for the review UI.
type ComputedValues struct {
	RowCount     int     `json:"row_count"`
	NumericRatio float64 `json:"numeric_ratio"`
	StationField string  `json:"station_field,omitempty"`
}

// ValidationResult is the response from validating an extraction.
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
	Computed    ComputedValues      `json:"computed"`
}

// stationField finds the column that orders the profile along the run:
// chainage or station, whatever the drawing calls it.
func stationField(schema []string) string {
	for _, name := range schema {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "chainage") || strings.Contains(lower, "station") {
			return name
		}
	}
	return ""
}

// ValidateProfile sanity-checks an extracted profile table: the run must
// have rows, numeric columns should mostly parse, and stations should not
// run backwards. OCR misreads on vintage sheets usually surface as one of
// these.
func ValidateProfile(table *models.Table) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	if table == nil || len(table.Records) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "EMPTY_TABLE",
			Message: "extraction produced no rows",
		})
		return result
	}

	result.Computed.RowCount = len(table.Records)

	// Numeric coverage: cells that were expected to be numbers but stayed
	// strings indicate low OCR quality.
	var numericCells, totalCells int
	for _, rec := range table.Records {
		for _, name := range table.Schema {
			v := rec.Fields[name]
			if v.Raw == "" {
				continue
			}
			totalCells++
			if v.Numeric {
				numericCells++
			}
		}
	}
	if totalCells > 0 {
		result.Computed.NumericRatio = float64(numericCells) / float64(totalCells)
	}
	if totalCells > 0 && result.Computed.NumericRatio < 0.3 {
		result.NeedsReview = true
		result.Warnings = append(result.Warnings, ValidationWarning{
			Code:    "LOW_NUMERIC_RATIO",
			Message: fmt.Sprintf("only %.0f%% of populated cells parsed as numbers", result.Computed.NumericRatio*100),
		})
	}

	station := stationField(table.Schema)
	result.Computed.StationField = station
	if station == "" {
		result.NeedsReview = true
		result.Warnings = append(result.Warnings, ValidationWarning{
			Code:    "NO_STATION_COLUMN",
			Message: "no chainage or station column found",
		})
		return result
	}

	// Stations must not decrease along the sheet.
	prev := decimal.Decimal{}
	havePrev := false
	for i, rec := range table.Records {
		v := rec.Fields[station]
		if !v.Numeric {
			continue
		}
		if havePrev && v.Number.LessThan(prev) {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   station,
				Code:    "STATION_OUT_OF_ORDER",
				Row:     i,
				Message: fmt.Sprintf("station %s follows %s", v.Number, prev),
			})
		}
		prev = v.Number
		havePrev = true
	}

	return result
}
