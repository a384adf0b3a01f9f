package parser

import (
	"fmt"
	"strings"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// hasMarkdownTable reports whether the text contains a pipe table with a
// header separator row.
func hasMarkdownTable(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "|") && strings.Contains(line, "---") {
			return true
		}
	}
	return false
}

// parseMarkdownTable reads a pipe-delimited table: the first non-separator
// row becomes the schema, separator rows are skipped, short rows are padded
// and rows matching a configured drop pattern (header echoes repeated inside
// scanned tables) are removed. All cells get a numeric parse attempt; cells
// that fail stay strings.
func parseMarkdownTable(text string, hints SchemaHints) (*models.Table, error) {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		if strings.Contains(line, "---") {
			continue
		}
		cells := splitRow(line)
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, cells)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: markdown table has no data rows", ErrNoRecords)
	}

	schema := uniquify(rows[0])
	table, err := models.NewTable(schema)
	if err != nil {
		return nil, err
	}

	for _, cells := range rows[1:] {
		if len(cells) > 0 && dropRow(cells[0], hints.DropRows) {
			continue
		}
		// Pad short rows to the header width; excess cells are discarded.
		for len(cells) < len(schema) {
			cells = append(cells, "")
		}
		rec := models.NewRecord(schema)
		for i, name := range schema {
			numeric := len(hints.NumericFields) == 0 || hints.NumericFields[name]
			rec.Fields[name] = cellValue(cells[i], numeric)
		}
		if err := table.Append(rec); err != nil {
			return nil, err
		}
	}

	if len(table.Records) == 0 {
		return nil, fmt.Errorf("%w: all markdown rows were dropped", ErrNoRecords)
	}
	return table, nil
}

func splitRow(line string) []string {
	var cells []string
	for _, cell := range strings.Split(line, "|") {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

func dropRow(firstCell string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(strings.ToLower(firstCell), strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// uniquify disambiguates duplicated header cells so the schema invariant
// (no duplicate field names) holds even for messy OCR headers.
func uniquify(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			out[i] = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			out[i] = h
		}
		seen[h]++
	}
	return out
}
