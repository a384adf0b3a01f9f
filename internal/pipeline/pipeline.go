package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pipeworks/profile-ocr-service/internal/export"
	"github.com/pipeworks/profile-ocr-service/internal/models"
	"github.com/pipeworks/profile-ocr-service/internal/ocr"
	"github.com/pipeworks/profile-ocr-service/internal/parser"
	"github.com/pipeworks/profile-ocr-service/internal/preprocess"
)

// Stage names the pipeline states. A run advances Idle → Preprocessing →
// Extracting → Parsing → Exporting → Done; any failure moves it to the
// terminal Failed state carrying the stage that broke.
type Stage string

const (
	StageIdle          Stage = "idle"
	StagePreprocessing Stage = "preprocessing"
	StageExtracting    Stage = "extracting"
	StageParsing       Stage = "parsing"
	StageExporting     Stage = "exporting"
	StageDone          Stage = "done"
)

// Error reports which stage failed and why. The underlying taxonomy error is
// reachable through errors.Is/As.
type Error struct {
	Stage Stage
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Pipeline orchestrates one drawing through preprocess, OCR, parse and
// export. It holds only configuration, so a single Pipeline value is safe
// for concurrent runs over independent images.
type Pipeline struct {
	client         *ocr.Client
	creds          ocr.Credentials
	preprocessOpts preprocess.Options
	hints          parser.SchemaHints
	exportFormat   export.Format
}

// New assembles a pipeline. Credentials are scoped to this pipeline's runs,
// not to the process.
func New(client *ocr.Client, creds ocr.Credentials, opts preprocess.Options, hints parser.SchemaHints, format export.Format) *Pipeline {
	if format == "" {
		format = export.FormatCSV
	}
	return &Pipeline{
		client:         client,
		creds:          creds,
		preprocessOpts: opts,
		hints:          hints,
		exportFormat:   format,
	}
}

// Result is the output of one successful run.
type Result struct {
	Table    *models.Table
	OCR      models.OCRResult
	Exported []byte
	Format   export.Format
	// OCRDuration covers the backend call including retries.
	OCRDuration time.Duration
}

// Run executes one extraction end to end. On failure the run stops at the
// broken stage and returns an *Error naming it; nothing partial is returned
// and the caller may retry the whole run.
func (p *Pipeline) Run(ctx context.Context, raw models.RawImage) (*Result, error) {
	stage := StageIdle
	fail := func(err error) (*Result, error) {
		slog.Error("pipeline run failed",
			"source_id", raw.ID,
			"stage", string(stage),
			"error", err)
		return nil, &Error{Stage: stage, Cause: err}
	}

	slog.Info("pipeline run started",
		"source_id", raw.ID,
		"format", string(raw.Format),
		"width", raw.Width,
		"height", raw.Height)

	stage = StagePreprocessing
	img, err := preprocess.Preprocess(raw, p.preprocessOpts)
	if err != nil {
		return fail(err)
	}

	stage = StageExtracting
	ocrStart := time.Now()
	ocrResult, err := p.client.Extract(ctx, img, p.creds)
	if err != nil {
		return fail(err)
	}
	ocrDuration := time.Since(ocrStart)

	stage = StageParsing
	table, err := parser.Parse(ocrResult, p.hints)
	if err != nil {
		return fail(err)
	}

	stage = StageExporting
	exported, err := export.Export(table, p.exportFormat)
	if err != nil {
		return fail(err)
	}

	stage = StageDone
	slog.Info("pipeline run complete",
		"source_id", raw.ID,
		"rows", len(table.Records),
		"columns", len(table.Schema),
		"ocr_duration", ocrDuration)

	return &Result{
		Table:       table,
		OCR:         ocrResult,
		Exported:    exported,
		Format:      p.exportFormat,
		OCRDuration: ocrDuration,
	}, nil
}
