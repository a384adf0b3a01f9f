package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/pipeworks/profile-ocr-service/internal/export"
	"github.com/pipeworks/profile-ocr-service/internal/models"
	"github.com/pipeworks/profile-ocr-service/internal/ocr"
	"github.com/pipeworks/profile-ocr-service/internal/parser"
	"github.com/pipeworks/profile-ocr-service/internal/preprocess"
)

const profileTable = `| CHAINAGE | LEVEL | DEPTH |
|---|---|---|
| 100 | 12.50 | 2.10 |
| 150 | 12.35 | 2.30 |`

func testRawImage(t *testing.T) models.RawImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	raw, err := preprocess.Decode("sheet-1.png", buf.Bytes())
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}
	return raw
}

func newTestPipeline(backend ocr.Backend) *Pipeline {
	client := ocr.NewClient(backend, time.Second, 1)
	return New(client, ocr.Credentials{}, preprocess.DefaultOptions(), parser.SchemaHints{}, export.FormatCSV)
}

func TestRun_Success(t *testing.T) {
	p := newTestPipeline(&ocr.StubBackend{Text: profileTable, Confidence: 0.88})

	result, err := p.Run(context.Background(), testRawImage(t))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Table.Records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(result.Table.Records))
	}
	if result.OCR.Confidence != 0.88 {
		t.Errorf("Expected backend confidence to flow through, got %v", result.OCR.Confidence)
	}
	if len(result.Exported) == 0 {
		t.Error("Expected exported bytes")
	}
}

func TestRun_Idempotent(t *testing.T) {
	p := newTestPipeline(&ocr.StubBackend{Text: profileTable})
	raw := testRawImage(t)

	first, err := p.Run(context.Background(), raw)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := p.Run(context.Background(), raw)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !bytes.Equal(first.Exported, second.Exported) {
		t.Error("Identical input and options produced differing tables")
	}
	if len(first.Table.Records) != len(second.Table.Records) {
		t.Error("Record counts differ across identical runs")
	}
}

func TestRun_InvalidImageFailsAtPreprocessing(t *testing.T) {
	p := newTestPipeline(&ocr.StubBackend{Text: profileTable})
	raw := models.RawImage{ID: "broken", Data: []byte("not an image")}

	_, err := p.Run(context.Background(), raw)
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected *pipeline.Error, got %v", err)
	}
	if pErr.Stage != StagePreprocessing {
		t.Errorf("Expected failure at preprocessing, got %s", pErr.Stage)
	}
	if !errors.Is(err, preprocess.ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage cause, got %v", pErr.Cause)
	}
}

func TestRun_BlankDrawingYieldsEmptyResultNotEmptyTable(t *testing.T) {
	// The image decodes fine but the backend finds no text.
	p := newTestPipeline(&ocr.StubBackend{Text: ""})

	result, err := p.Run(context.Background(), testRawImage(t))
	if result != nil {
		t.Fatal("Expected no partial result on failure")
	}
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected *pipeline.Error, got %v", err)
	}
	if pErr.Stage != StageExtracting {
		t.Errorf("Expected failure at extracting, got %s", pErr.Stage)
	}
	if !errors.Is(err, ocr.ErrEmptyResult) {
		t.Errorf("Expected ErrEmptyResult cause, got %v", pErr.Cause)
	}
}

func TestRun_UnparsableTextFailsAtParsing(t *testing.T) {
	p := newTestPipeline(&ocr.StubBackend{Text: "handwritten marginalia, nothing tabular"})

	_, err := p.Run(context.Background(), testRawImage(t))
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected *pipeline.Error, got %v", err)
	}
	if pErr.Stage != StageParsing {
		t.Errorf("Expected failure at parsing, got %s", pErr.Stage)
	}
	if !errors.Is(err, parser.ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords cause, got %v", pErr.Cause)
	}
}

func TestRun_ConcurrentIndependentRuns(t *testing.T) {
	p := newTestPipeline(&ocr.StubBackend{Text: profileTable})
	raw := testRawImage(t)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := p.Run(context.Background(), raw)
			if err != nil {
				t.Errorf("Concurrent run %d failed: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] == nil || results[0] == nil {
			continue
		}
		if !bytes.Equal(results[0].Exported, results[i].Exported) {
			t.Errorf("Concurrent run %d diverged", i)
		}
	}
}
