package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // default "eng"
	DPI         int    // rasterization DPI for scanned PDFs, default 300
	MaxPages    int    // 0 = no limit
	TessdataDir string
	WorkDir     string // scratch space for rasterized pages; temp dir when empty
}

// Dispatcher routes a stored file to the extractor for its type and returns
// plain text. It owns the OCR engine; Close releases it.
type Dispatcher struct {
	cfg    Config
	runner Runner
	engine *Engine
	logger *slog.Logger
}

func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return NewDispatcherWithRunner(cfg, ExecRunner{Logger: logger}, logger)
}

// NewDispatcherWithRunner is NewDispatcher with a custom command runner.
func NewDispatcherWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Dispatcher{
		cfg:    cfg,
		runner: runner,
		engine: newEngine(cfg, runner, logger),
		logger: logger,
	}
}

// Extract returns the trimmed text of the file at path. fileType is the
// file's extension, with or without the dot.
func (d *Dispatcher) Extract(ctx context.Context, path, fileType string) (string, error) {
	start := time.Now()
	ext := constants.NormalizeExt(fileType)
	format := constants.MapExtToFormat(ext)
	if format == "" {
		d.logger.Warn("ocr.extract.unsupported", "path", path, "file_type", ext)
		return "", common.UnsupportedFileTypeError(ext)
	}
	if _, err := os.Stat(path); err != nil {
		return "", common.ExtractionFailureError(path, err)
	}

	d.logger.Debug("ocr.extract.start", "path", path, "file_type", ext, "format", format)

	var (
		text   string
		method string
		err    error
	)
	switch format {
	case constants.PDF:
		text, method, err = d.extractPDF(ctx, path)
	case constants.IMAGE:
		method = "image-ocr"
		text, err = d.engine.Recognize(ctx, path)
	case constants.WORD:
		method = "docx-xml"
		if ext == "doc" {
			err = common.ErrLegacyWordFormat
		} else {
			text, err = readDocx(path)
		}
	}
	if err != nil {
		d.logger.Error("ocr.extract.failed", "path", path, "file_type", ext, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", common.ExtractionFailureError(path, err)
	}

	text = Normalize(text)
	d.logger.Info("ocr.extract.ok",
		"path", path,
		"method", method,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// extractPDF prefers the embedded text layer and OCRs scanned PDFs. The
// layer is read in process first; pdftotext handles files the parser rejects.
func (d *Dispatcher) extractPDF(ctx context.Context, path string) (string, string, error) {
	text, pages, err := readPDFText(path)
	switch {
	case err != nil:
		d.logger.Debug("ocr.pdf.parse_failed", "path", path, "error", err)
	case strings.TrimSpace(text) != "":
		d.logger.Debug("ocr.pdf.text_layer", "path", path, "pages", pages)
		return text, "pdf-text", nil
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := d.runner.Run(ctx, d.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", "pdf-text", fmt.Errorf("pdftotext: %w (%s)", err, truncate(string(errb), 512))
	}
	text = string(out)
	if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) != "" {
		return text, "pdf-text", nil
	}

	d.logger.Info("ocr.pdf.no_text_layer", "path", path)
	text, pages, err = d.engine.RecognizePDF(ctx, path)
	if err != nil {
		return "", "pdf-ocr", err
	}
	d.logger.Debug("ocr.pdf.ocr_ok", "path", path, "pages", pages)
	return text, "pdf-ocr", nil
}

// Close releases the OCR engine.
func (d *Dispatcher) Close() error {
	return d.engine.Close()
}
