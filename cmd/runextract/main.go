package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/analysis"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/llm/openai"
	"github.com/joseph-ayodele/legal-docs/internal/ocr"
)

type output struct {
	Path           string                 `json:"path"`
	FileType       string                 `json:"fileType"`
	Text           string                 `json:"text"`
	Classification *entity.Classification `json:"classification,omitempty"`
	Facts          map[string]string      `json:"facts,omitempty"`
	ElapsedMs      int64                  `json:"elapsedMs"`
}

func main() {
	var (
		analyze = flag.Bool("analyze", false, "also classify the text and extract facts (needs OPENAI_API_KEY)")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.LogLevel)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runextract [-analyze] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	ext := constants.NormalizeExt(filepath.Ext(path))
	if !constants.IsAllowedExt(ext) {
		logger.Error("unsupported file type", "path", path, "ext", ext)
		os.Exit(2)
	}
	if *analyze && cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required with -analyze")
		os.Exit(2)
	}

	out, err := run(context.Background(), cfg, path, ext, *analyze, *timeout, logger)
	if err != nil {
		logger.Error("runextract failed", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, path, ext string, analyze bool, timeout time.Duration, logger *slog.Logger) (output, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dispatcher := ocr.NewDispatcher(ocr.Config{
		Pdftotext:   cfg.OCR.Pdftotext,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		DPI:         cfg.OCR.DPI,
		TessdataDir: cfg.OCR.TessdataDir,
		WorkDir:     cfg.OCR.WorkDir,
	}, logger)
	defer func() { _ = dispatcher.Close() }()

	start := time.Now()
	text, err := dispatcher.Extract(ctx, path, ext)
	if err != nil {
		return output{}, fmt.Errorf("text extraction after %dms: %w", time.Since(start).Milliseconds(), err)
	}
	out := output{Path: path, FileType: ext, Text: text}

	if analyze {
		ai := openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.ExtractModel,
			Timeout: cfg.LLM.Timeout,
		}, logger)
		cls := analysis.NewClassifier(ai, cfg.LLM.ExtractModel, logger).Classify(ctx, text)
		out.Classification = &cls

		rec, err := analysis.NewFactExtractor(ai, cfg.LLM.ExtractModel, logger).ExtractFacts(ctx, text)
		if err != nil {
			return output{}, fmt.Errorf("fact extraction: %w", err)
		}
		out.Facts = rec.Values()
	}
	out.ElapsedMs = time.Since(start).Milliseconds()
	return out, nil
}
