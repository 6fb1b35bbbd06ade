package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/legal-docs/internal/analysis"
	"github.com/joseph-ayodele/legal-docs/internal/async"
	"github.com/joseph-ayodele/legal-docs/internal/clarify"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/export"
	"github.com/joseph-ayodele/legal-docs/internal/ingest"
	"github.com/joseph-ayodele/legal-docs/internal/llm/openai"
	"github.com/joseph-ayodele/legal-docs/internal/ocr"
	"github.com/joseph-ayodele/legal-docs/internal/pipeline"
	repo "github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/server"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
	"github.com/joseph-ayodele/legal-docs/internal/templates"
	"github.com/joseph-ayodele/legal-docs/internal/workpool"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("legal-docs exited", "error", err)
		os.Exit(1)
	}
}

// run owns every resource it opens so deferred teardown happens on all
// return paths.
func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	files, err := storage.NewLocalStore(cfg.Server.UploadDir, cfg.Server.MaxUploadBytes, logger)
	if err != nil {
		return fmt.Errorf("prepare upload dir %s: %w", cfg.Server.UploadDir, err)
	}

	// bind both listeners before any background work starts
	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.Server.HTTPAddr, err)
	}
	defer httpLis.Close()
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.Server.GRPCAddr, err)
	}
	defer grpcLis.Close()

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
			logger.Error("close ocr engine", "error", err)
		}
	}()

	ai := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.ExtractModel,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	pool, err := workpool.New("external", workpool.Config{
		Capacity:       cfg.Workers.ServicePoolSize,
		ExpiryDuration: 30 * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer func() {
		if err := pool.Release(5 * time.Second); err != nil {
			logger.Warn("worker pool release", "error", err)
		}
	}()

	catalog, err := templates.NewCatalog()
	if err != nil {
		return fmt.Errorf("load template catalog: %w", err)
	}
	generator := templates.NewGenerator(catalog, templates.AttorneyProfile{
		Name:    cfg.Attorney.Name,
		Address: cfg.Attorney.Address,
		Phone:   cfg.Attorney.Phone,
		Email:   cfg.Attorney.Email,
	})

	processor := pipeline.NewProcessor(pipeline.Deps{
		Documents:  store.Documents,
		Facts:      store.Facts,
		Files:      files,
		Text:       dispatcher,
		Classifier: analysis.NewClassifier(ai, cfg.LLM.ExtractModel, logger),
		Extractor:  analysis.NewFactExtractor(ai, cfg.LLM.ExtractModel, logger),
		Pool:       pool,
	}, logger)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Workers.ProcessWorkers),
		async.WithQueueSize(cfg.Workers.QueueSize),
		async.WithProcessTimeout(cfg.Workers.ProcessTimeout),
	)
	// runs before the pool release and dispatcher close deferred above
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		queue.Shutdown(drainCtx)
	}()

	if cfg.Ingest.WatchDir != "" {
		if err := os.MkdirAll(cfg.Ingest.WatchDir, 0o755); err != nil {
			return fmt.Errorf("create watch dir %s: %w", cfg.Ingest.WatchDir, err)
		}
		paths, _, err := ingest.Watch(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.WatchDir},
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
		}, logger)
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.Ingest.WatchDir, err)
		}
		ingestor := ingest.NewIngestor(store.Documents, files, logger)
		go ingestor.Consume(ctx, paths, func(ctx context.Context, id string) error {
			return queue.Enqueue(ctx, async.Job{DocumentID: id, SubmittedAt: time.Now()})
		})
	}

	pending, err := processor.RecoverInterrupted(ctx)
	if err != nil {
		logger.Error("failed to recover interrupted documents", "error", err)
	}
	for _, id := range pending {
		if err := queue.Enqueue(ctx, async.Job{DocumentID: id, SubmittedAt: time.Now()}); err != nil {
			logger.Warn("requeue failed", "document_id", id, "error", err)
		}
	}

	storeHealth := func(ctx context.Context) error {
		return store.HealthCheck(ctx, 2*time.Second)
	}
	e := server.New(&server.Dependencies{
		Documents:      store.Documents,
		Facts:          store.Facts,
		Files:          files,
		Queue:          queue,
		Catalog:        catalog,
		Generator:      generator,
		Clarifier:      clarify.NewEngine(ai, cfg.LLM.ClarifyModel, logger),
		Sessions:       clarify.NewSessions(),
		Exporter:       export.NewService(store.Documents, store.Facts, logger),
		Health:         storeHealth,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Version:        version,
		Logger:         logger,
	})
	e.Listener = httpLis

	// gRPC health for orchestrators; NOT_SERVING until the store answers
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer grpcServer.GracefulStop()

	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC serve error", "error", err)
		}
	}()
	go func() {
		logger.Info("legal-docs listening", "http", httpLis.Addr().String(), "grpc", grpcLis.Addr().String(), "backend", store.Backend)
		if err := e.Start(cfg.Server.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()
	go server.WatchReadiness(ctx, storeHealth, 10*time.Second, func(serving bool) {
		status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
		if serving {
			status = grpc_health_v1.HealthCheckResponse_SERVING
		}
		healthServer.SetServingStatus("", status)
	}, logger)

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("http server stopped")
	return nil
}
