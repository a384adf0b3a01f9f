package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

// ErrNoRecords marks OCR text from which no table rows could be extracted.
var ErrNoRecords = errors.New("no records found in OCR text")

// NotesField collects unmatched lines when KeepUnmatched is set.
const NotesField = "notes"

// Rule maps a pattern to a field name. When the pattern has a capture group,
// the first group is the field value; otherwise the whole match is.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
}

// SchemaHints configures parsing. Rules are tried in order against each line;
// a rule fills its field the first time it matches within a record, so the
// earliest rule for a field wins. A line matching RowStart opens a new
// record.
type SchemaHints struct {
	RowStart      *regexp.Regexp
	Rules         []Rule
	NumericFields map[string]bool
	KeepUnmatched bool
	DropRows      []string
}

// HintsFromConfig compiles the declarative rule configuration.
func HintsFromConfig(cfg models.ParserConfig) (SchemaHints, error) {
	hints := SchemaHints{
		NumericFields: make(map[string]bool, len(cfg.NumericFields)),
		KeepUnmatched: cfg.KeepUnmatched,
		DropRows:      cfg.DropRows,
	}

	if cfg.RowStart != "" {
		re, err := regexp.Compile(cfg.RowStart)
		if err != nil {
			return SchemaHints{}, fmt.Errorf("invalid row_start pattern: %w", err)
		}
		hints.RowStart = re
	}

	for _, rc := range cfg.Rules {
		if rc.Field == "" {
			return SchemaHints{}, fmt.Errorf("rule with empty field name")
		}
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return SchemaHints{}, fmt.Errorf("invalid pattern for field %s: %w", rc.Field, err)
		}
		hints.Rules = append(hints.Rules, Rule{Field: rc.Field, Pattern: re})
	}

	for _, f := range cfg.NumericFields {
		hints.NumericFields[f] = true
	}
	return hints, nil
}

// schema returns the ordered field names the rules produce.
func (h SchemaHints) schema() []string {
	var fields []string
	seen := make(map[string]bool)
	for _, r := range h.Rules {
		if !seen[r.Field] {
			fields = append(fields, r.Field)
			seen[r.Field] = true
		}
	}
	if h.KeepUnmatched && !seen[NotesField] {
		fields = append(fields, NotesField)
	}
	return fields
}

// Parse converts raw OCR text into a table. Markdown tables (the form
// LlamaOCR-style backends return for drawing callout blocks) are parsed with
// the header row as schema; otherwise the configured line rules apply.
// Returns ErrNoRecords when nothing tabular could be extracted.
func Parse(res models.OCRResult, hints SchemaHints) (*models.Table, error) {
	text := stripEmphasis(res.Text)

	if hasMarkdownTable(text) {
		table, err := parseMarkdownTable(text, hints)
		if err == nil {
			return table, nil
		}
		slog.Debug("parser: markdown table rejected, falling back to line rules",
			"source_id", res.SourceID, "error", err)
	}

	return parseWithRules(text, hints)
}

func parseWithRules(text string, hints SchemaHints) (*models.Table, error) {
	schema := hints.schema()
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: no field rules configured", ErrNoRecords)
	}
	table, err := models.NewTable(schema)
	if err != nil {
		return nil, err
	}

	var current *models.Record
	flush := func() error {
		if current == nil {
			return nil
		}
		err := table.Append(*current)
		current = nil
		return err
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if hints.RowStart != nil && hints.RowStart.MatchString(line) {
			if err := flush(); err != nil {
				return nil, err
			}
			rec := models.NewRecord(schema)
			current = &rec
		}
		if current == nil {
			// Text before the first row start is preamble; skip it.
			continue
		}

		matched := false
		for _, rule := range hints.Rules {
			m := rule.Pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			matched = true
			if current.Fields[rule.Field].Raw != "" {
				continue // earliest match for a field wins
			}
			value := m[0]
			if len(m) > 1 {
				value = m[1]
			}
			current.Fields[rule.Field] = cellValue(value, hints.NumericFields[rule.Field])
		}

		if !matched && hints.KeepUnmatched {
			notes := current.Fields[NotesField].Raw
			if notes != "" {
				notes += " "
			}
			current.Fields[NotesField] = models.StringValue(notes + line)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(table.Records) == 0 {
		return nil, ErrNoRecords
	}
	return table, nil
}

// cellValue attempts locale-aware decimal parsing for numeric fields; a parse
// failure degrades the cell to its raw string form instead of failing the
// record.
func cellValue(raw string, numeric bool) models.Value {
	if numeric {
		if d, ok := parseDecimal(raw); ok {
			return models.NumberValue(raw, d)
		}
	}
	return models.StringValue(raw)
}

var emphasisRe = regexp.MustCompile(`\*\*(.*?)\*\*`)

func stripEmphasis(text string) string {
	return emphasisRe.ReplaceAllString(text, "$1")
}
