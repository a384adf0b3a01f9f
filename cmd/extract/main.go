package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pipeworks/profile-ocr-service/internal/export"
	"github.com/pipeworks/profile-ocr-service/internal/models"
	"github.com/pipeworks/profile-ocr-service/internal/ocr"
	"github.com/pipeworks/profile-ocr-service/internal/parser"
	"github.com/pipeworks/profile-ocr-service/internal/pipeline"
	"github.com/pipeworks/profile-ocr-service/internal/preprocess"
)

func main() {
	backendName := flag.String("backend", envOr("OCR_BACKEND", "openai"), "OCR backend (openai, gemini, http, stub)")
	model := flag.String("model", os.Getenv("OCR_MODEL"), "backend model override")
	endpoint := flag.String("endpoint", os.Getenv("OCR_ENDPOINT"), "endpoint for the http backend")
	formatName := flag.String("format", "csv", "export format (csv or xlsx)")
	output := flag.String("o", "", "output file (default stdout for csv, <image>.xlsx for xlsx)")
	timeout := flag.Int("timeout", 30, "OCR timeout in seconds")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image-path>\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(os.Stderr, "Extracts tabular data from a scanned drawing and writes it as CSV or XLSX.")
		fmt.Fprintln(os.Stderr, "The OCR API key is read from the OCR_API_KEY environment variable.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	backend, err := ocr.BackendFromConfig(models.OCRConfig{
		Backend:  *backendName,
		Model:    *model,
		Endpoint: *endpoint,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	raw, err := preprocess.Decode(filepath.Base(imagePath), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preprocessing: %v\n", err)
		os.Exit(1)
	}

	// The CLI suppresses routine pipeline logging so stdout stays machine
	// readable; failures are reported explicitly below.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	client := ocr.NewClient(backend, time.Duration(*timeout)*time.Second, 0)
	pipe := pipeline.New(client,
		ocr.Credentials{APIKey: os.Getenv("OCR_API_KEY")},
		preprocess.DefaultOptions(), parser.SchemaHints{}, format)

	result, err := pipe.Run(context.Background(), raw)
	if err != nil {
		var pErr *pipeline.Error
		if errors.As(err, &pErr) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", pErr.Stage, pErr.Cause)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	dest := *output
	if dest == "" && format == export.FormatXLSX {
		dest = imagePath[:len(imagePath)-len(filepath.Ext(imagePath))] + ".xlsx"
	}
	if dest == "" {
		os.Stdout.Write(result.Exported)
		return
	}
	if err := os.WriteFile(dest, result.Exported, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(result.Table.Records), dest)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
