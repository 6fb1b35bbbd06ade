package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/legal-docs/internal/analysis"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/export"
	"github.com/joseph-ayodele/legal-docs/internal/ingest"
	"github.com/joseph-ayodele/legal-docs/internal/llm/openai"
	"github.com/joseph-ayodele/legal-docs/internal/ocr"
	"github.com/joseph-ayodele/legal-docs/internal/pipeline"
	repo "github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
	"github.com/joseph-ayodele/legal-docs/internal/workpool"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type options struct {
	dir     string
	out     string
	dsn     string
	uploads string
	hidden  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "directory of legal documents to process (required)")
	flag.StringVar(&opts.out, "out", "", "output XLSX path (defaults to documents.xlsx next to --dir)")
	flag.StringVar(&opts.dsn, "db", repo.MemoryDSN, "store DSN: memory, a sqlite file or postgres://")
	flag.StringVar(&opts.uploads, "uploads", "", "where copies of the documents are kept (temp dir when empty)")
	flag.BoolVar(&opts.hidden, "hidden", false, "include hidden files and directories")
	flag.Parse()

	if opts.dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if opts.out == "" {
		opts.out = filepath.Join(filepath.Dir(filepath.Clean(opts.dir)), "documents.xlsx")
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	if cfg.LLM.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not configured, fact extraction will fail for every document")
	}

	if err := run(context.Background(), opts, cfg, logger); err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}
}

// run keeps every deferred cleanup on its return paths.
func run(ctx context.Context, opts options, cfg *common.Config, logger *slog.Logger) error {
	store, err := repo.Open(ctx, repo.Config{
		DSN:         opts.dsn,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	uploadDir := opts.uploads
	if uploadDir == "" {
		tmp, err := os.MkdirTemp("", "legal-docs-batch-*")
		if err != nil {
			return fmt.Errorf("create upload dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		uploadDir = tmp
	}
	files, err := storage.NewLocalStore(uploadDir, cfg.Server.MaxUploadBytes, logger)
	if err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}

	dispatcher := ocr.NewDispatcher(ocr.Config{
		Pdftotext:   cfg.OCR.Pdftotext,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		DPI:         cfg.OCR.DPI,
		TessdataDir: cfg.OCR.TessdataDir,
		WorkDir:     cfg.OCR.WorkDir,
	}, logger)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("close ocr engine", "error", err)
		}
	}()

	ai := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.ExtractModel,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	pool, err := workpool.New("batch", workpool.Config{Capacity: cfg.Workers.ServicePoolSize}, logger)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer func() { _ = pool.Release(5 * time.Second) }()

	processor := pipeline.NewProcessor(pipeline.Deps{
		Documents:  store.Documents,
		Facts:      store.Facts,
		Files:      files,
		Text:       dispatcher,
		Classifier: analysis.NewClassifier(ai, cfg.LLM.ExtractModel, logger),
		Extractor:  analysis.NewFactExtractor(ai, cfg.LLM.ExtractModel, logger),
		Pool:       pool,
	}, logger)

	ingestor := ingest.NewIngestor(store.Documents, files, logger)
	results, stats, err := ingestor.IngestDirectory(ctx, opts.dir, !opts.hidden)
	if err != nil {
		return fmt.Errorf("ingest directory: %w", err)
	}

	processed, failures := 0, 0
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		runCtx, cancel := context.WithTimeout(ctx, cfg.Workers.ProcessTimeout)
		err := processor.ProcessDocument(runCtx, r.DocumentID)
		cancel()
		if err != nil {
			logger.Error("failed to process document", "document_id", r.DocumentID, "path", r.SourcePath, "error", err)
			failures++
			continue
		}
		processed++
	}

	xlsx, err := export.NewService(store.Documents, store.Facts, logger).DocumentsXLSX(ctx)
	if err != nil {
		return fmt.Errorf("export documents: %w", err)
	}
	if err := os.WriteFile(opts.out, xlsx, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}

	logger.Info("batch processing complete",
		"matched", stats.Matched,
		"ingested", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"processed", processed,
		"failures", failures,
		"output_file", opts.out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files ingested: %d (%d duplicates)\n", stats.Succeeded, stats.Deduplicated)
	fmt.Printf("- Documents processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures+int(stats.Failed))
	fmt.Printf("- Output: %s\n", opts.out)
	return nil
}
