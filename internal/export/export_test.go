package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/pipeworks/profile-ocr-service/internal/models"
)

func sampleTable(t *testing.T) *models.Table {
	t.Helper()
	table, err := models.NewTable([]string{"station", "diameter", "material", "year"})
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	rows := []map[string]models.Value{
		{
			"station":  models.StringValue("100+00"),
			"diameter": models.StringValue("12in"),
			"material": models.StringValue("DI"),
			"year":     models.NumberValue("1920", decimal.NewFromInt(1920)),
		},
		{
			"station":  models.StringValue("101+50"),
			"diameter": models.StringValue(`8" nominal, "special"`),
			"material": models.StringValue("CI, lined"),
			"year":     models.NumberValue("1935", decimal.NewFromInt(1935)),
		},
	}
	for _, fields := range rows {
		if err := table.Append(models.Record{Fields: fields}); err != nil {
			t.Fatalf("Failed to append record: %v", err)
		}
	}
	return table
}

func TestParseFormat(t *testing.T) {
	if _, err := ParseFormat("csv"); err != nil {
		t.Errorf("Expected csv to be supported: %v", err)
	}
	if _, err := ParseFormat("xlsx"); err != nil {
		t.Errorf("Expected xlsx to be supported: %v", err)
	}
	if _, err := ParseFormat("parquet"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExport_EmptyTable(t *testing.T) {
	table, _ := models.NewTable([]string{"a"})
	if _, err := Export(table, FormatCSV); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("Expected ErrEmptyTable, got %v", err)
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if _, err := Export(sampleTable(t), Format("tsv")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExportCSV_RoundTrip(t *testing.T) {
	table := sampleTable(t)

	data, err := Export(table, FormatCSV)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("Exported CSV is not standard-readable: %v", err)
	}

	if len(records) != len(table.Records)+1 {
		t.Fatalf("Expected %d CSV rows, got %d", len(table.Records)+1, len(records))
	}

	for i, name := range table.Schema {
		if records[0][i] != name {
			t.Errorf("Header column %d: expected %q, got %q", i, name, records[0][i])
		}
	}

	for i, row := range table.Rows() {
		for j, want := range row {
			if records[i+1][j] != want {
				t.Errorf("Row %d col %d: expected %q, got %q", i, j, want, records[i+1][j])
			}
		}
	}
}

func TestExportCSV_EscapesDelimitersAndQuotes(t *testing.T) {
	data, err := Export(sampleTable(t), FormatCSV)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("Failed to re-read CSV: %v", err)
	}
	if got := records[2][1]; got != `8" nominal, "special"` {
		t.Errorf("Quoted cell mangled: %q", got)
	}
	if got := records[2][2]; got != "CI, lined" {
		t.Errorf("Comma cell mangled: %q", got)
	}
}

func TestExportXLSX_ReadableWorkbook(t *testing.T) {
	table := sampleTable(t)

	data, err := Export(table, FormatXLSX)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Exported bytes are not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("Failed to read worksheet: %v", err)
	}
	if len(rows) != len(table.Records)+1 {
		t.Fatalf("Expected %d workbook rows, got %d", len(table.Records)+1, len(rows))
	}
	for i, name := range table.Schema {
		if rows[0][i] != name {
			t.Errorf("Header column %d: expected %q, got %q", i, name, rows[0][i])
		}
	}
	if rows[1][0] != "100+00" {
		t.Errorf("Expected first station 100+00, got %q", rows[1][0])
	}
	if rows[1][3] != "1920" {
		t.Errorf("Expected year 1920, got %q", rows[1][3])
	}
}
