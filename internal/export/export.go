package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

var (
	// ErrUnsupportedFormat marks an export format this package does not
	// produce.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrEmptyTable marks an export attempt on a table with zero rows.
	ErrEmptyTable = errors.New("table has no rows to export")
)

// Format is a supported tabular output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet name used for XLSX exports.
const SheetName = "Pipeline Data"

// ParseFormat validates a caller-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Export serializes a table. Column order follows the schema exactly; the
// first row is always the header row.
func Export(t *models.Table, format Format) ([]byte, error) {
	if t == nil || len(t.Records) == 0 {
		return nil, ErrEmptyTable
	}

	switch format {
	case FormatCSV:
		return exportCSV(t)
	case FormatXLSX:
		return exportXLSX(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func exportCSV(t *models.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Schema); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range t.Rows() {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func exportXLSX(t *models.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create worksheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	header := make([]interface{}, len(t.Schema))
	for i, name := range t.Schema {
		header[i] = name
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, rec := range t.Records {
		row := make([]interface{}, len(t.Schema))
		for j, name := range t.Schema {
			v := rec.Fields[name]
			if v.Numeric {
				// Keep numbers numeric in the workbook.
				fl, _ := v.Number.Float64()
				row[j] = fl
			} else {
				row[j] = v.Raw
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
