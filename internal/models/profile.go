package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ImageFormat identifies the container format of an uploaded drawing.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatTIFF ImageFormat = "tiff"
)

// MIME returns the content type for the format.
func (f ImageFormat) MIME() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// RawImage is a decodable drawing as received from the caller. It is owned by
// one pipeline run and never mutated after construction.
type RawImage struct {
	ID     string      `json:"id"` // source identifier (filename or run id)
	Data   []byte      `json:"-"`
	Format ImageFormat `json:"format"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

// PreprocessedImage is the canonical form handed to the OCR backend. Always
// PNG-encoded; discarded once the backend call returns.
type PreprocessedImage struct {
	SourceID string `json:"sourceId"`
	Data     []byte `json:"-"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// OCRResult is the raw text returned by an OCR backend for one image.
// Confidence is backend-reported and may be zero when the backend does not
// report one.
type OCRResult struct {
	SourceID   string  `json:"sourceId"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Value is a single extracted cell. Cells that parse as numbers keep their
// decimal form; cells that fail numeric parsing keep only the raw string.
type Value struct {
	Raw     string          `json:"raw"`
	Number  decimal.Decimal `json:"number,omitempty"`
	Numeric bool            `json:"numeric"`
}

// StringValue builds a plain text cell.
func StringValue(s string) Value {
	return Value{Raw: s}
}

// NumberValue builds a numeric cell that remembers its source text.
func NumberValue(raw string, d decimal.Decimal) Value {
	return Value{Raw: raw, Number: d, Numeric: true}
}

// Export renders the cell for tabular output.
func (v Value) Export() string {
	if v.Numeric {
		return v.Number.String()
	}
	return v.Raw
}

// Record is one extracted row. Its Fields always hold exactly the keys of the
// owning Table's schema.
type Record struct {
	Fields map[string]Value `json:"fields"`
}

// NewRecord allocates a record with every schema field present and empty.
func NewRecord(schema []string) Record {
	fields := make(map[string]Value, len(schema))
	for _, name := range schema {
		fields[name] = Value{}
	}
	return Record{Fields: fields}
}

// Table is an ordered sequence of records sharing one schema. Row order
// follows document order.
type Table struct {
	Schema  []string `json:"schema"`
	Records []Record `json:"records"`
}

// NewTable validates the schema and returns an empty table.
func NewTable(schema []string) (*Table, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("schema must contain at least one field")
	}
	seen := make(map[string]bool, len(schema))
	for _, name := range schema {
		if name == "" {
			return nil, fmt.Errorf("schema contains an empty field name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate field name in schema: %s", name)
		}
		seen[name] = true
	}
	return &Table{Schema: append([]string(nil), schema...)}, nil
}

// Append adds a record, rejecting rows that do not match the schema exactly.
func (t *Table) Append(rec Record) error {
	if len(rec.Fields) != len(t.Schema) {
		return fmt.Errorf("record has %d fields, schema has %d", len(rec.Fields), len(t.Schema))
	}
	for _, name := range t.Schema {
		if _, ok := rec.Fields[name]; !ok {
			return fmt.Errorf("record is missing schema field %q", name)
		}
	}
	t.Records = append(t.Records, rec)
	return nil
}

// Rows renders all records as strings in schema column order.
func (t *Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records))
	for _, rec := range t.Records {
		row := make([]string, len(t.Schema))
		for i, name := range t.Schema {
			row[i] = rec.Fields[name].Export()
		}
		rows = append(rows, row)
	}
	return rows
}

// Extraction is one persisted pipeline run.
type Extraction struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	ImagePath  string     `json:"imagePath,omitempty"`
	Schema     []string   `json:"schema"`
	RowCount   int        `json:"rowCount"`
	Table      *Table     `json:"table,omitempty"`
	RawText    string     `json:"rawText,omitempty"`
	Confidence float64    `json:"confidence"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// ProcessResponse is the API payload returned after processing a drawing.
type ProcessResponse struct {
	Success       bool        `json:"success"`
	Extraction    *Extraction `json:"extraction,omitempty"`
	Error         string      `json:"error,omitempty"`
	Stage         string      `json:"stage,omitempty"`
	OCRDuration   float64     `json:"ocrDuration,omitempty"`
	TotalDuration float64     `json:"totalDuration"`
}
