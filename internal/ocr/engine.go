package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrEngineClosed is returned once the engine has been torn down.
var ErrEngineClosed = errors.New("ocr engine closed")

// Engine is the shared OCR handle. It is opened lazily on first use, shared by
// every caller, and released once by Close.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	mu      sync.Mutex
	opened  bool
	closed  bool
	workDir string
	ownsDir bool
}

func newEngine(cfg Config, runner Runner, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, runner: runner, logger: logger}
}

// open probes the tesseract binary and prepares the scratch directory.
// Callers must hold e.mu.
func (e *Engine) open(ctx context.Context) error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.opened {
		return nil
	}
	if _, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, "--version"); err != nil {
		return fmt.Errorf("tesseract unavailable: %w (%s)", err, truncate(string(errb), 512))
	}
	dir := e.cfg.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "legal-docs-ocr-*")
		if err != nil {
			return fmt.Errorf("create ocr work dir: %w", err)
		}
		dir, e.ownsDir = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ocr work dir: %w", err)
	}
	e.workDir = dir
	e.opened = true
	e.logger.Info("ocr.engine.opened", "work_dir", dir, "lang", e.cfg.Language)
	return nil
}

// acquire returns the work directory, opening the engine if needed.
func (e *Engine) acquire(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.open(ctx); err != nil {
		return "", err
	}
	return e.workDir, nil
}

// Close releases the engine. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if !e.opened {
		return nil
	}
	e.opened = false
	if e.ownsDir {
		if err := os.RemoveAll(e.workDir); err != nil {
			return fmt.Errorf("remove ocr work dir: %w", err)
		}
	}
	e.logger.Info("ocr.engine.closed")
	return nil
}

// Recognize runs tesseract on one image and returns its text.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if _, err := e.acquire(ctx); err != nil {
		return "", err
	}
	// tesseract <file> stdout -l <lang>
	args := []string{imagePath, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return stripBoxNoise(string(out)), nil
}

// RecognizePDF rasterizes a scanned PDF and OCRs each page in order.
func (e *Engine) RecognizePDF(ctx context.Context, pdfPath string) (string, int, error) {
	workDir, err := e.acquire(ctx)
	if err != nil {
		return "", 0, err
	}
	pageDir, err := os.MkdirTemp(workDir, "pages-*")
	if err != nil {
		return "", 0, fmt.Errorf("create page dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(pageDir); rmErr != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", pageDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(pageDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <dir/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", pdfPath, prefix); err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, errors.New("pdftoppm produced no pages")
	}

	pages := make([]string, 0, len(matches))
	for _, img := range matches {
		txt, err := e.Recognize(ctx, img)
		if err != nil {
			return "", 0, fmt.Errorf("page %s: %w", filepath.Base(img), err)
		}
		pages = append(pages, txt)
	}
	return strings.Join(pages, "\n\n"), len(matches), nil
}
