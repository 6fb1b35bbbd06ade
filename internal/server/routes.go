package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/legal-docs/internal/async"
	"github.com/joseph-ayodele/legal-docs/internal/clarify"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
	"github.com/joseph-ayodele/legal-docs/internal/templates"
)

// FileStore holds uploaded bytes.
type FileStore interface {
	Save(originalName string, r io.Reader) (storage.StoredFile, error)
	Delete(name string) error
}

// QuestionGenerator produces clarifying questions for a document.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, documentType string, confidence float64, facts any) ([]string, error)
}

// Exporter renders the documents workbook.
type Exporter interface {
	DocumentsXLSX(ctx context.Context) ([]byte, error)
}

// Dependencies holds all handler dependencies
type Dependencies struct {
	Documents      repository.DocumentRepository
	Facts          repository.FactRepository
	Files          FileStore
	Queue          async.Queue
	Catalog        *templates.Catalog
	Generator      *templates.Generator
	Clarifier      QuestionGenerator
	Sessions       *clarify.Sessions
	Exporter       Exporter
	Health         func(ctx context.Context) error
	MaxUploadBytes int64
	Version        string
	Logger         *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Documents *DocumentHandler
	Templates *TemplateHandler
	Clarify   *ClarifyHandler
	Export    *ExportHandler
	Health    *HealthHandler
}

func NewHandlers(deps *Dependencies) *Handlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Sessions == nil {
		deps.Sessions = clarify.NewSessions()
	}
	return &Handlers{
		Documents: &DocumentHandler{deps: deps},
		Templates: &TemplateHandler{catalog: deps.Catalog},
		Clarify:   &ClarifyHandler{deps: deps},
		Export:    &ExportHandler{exporter: deps.Exporter, logger: deps.Logger},
		Health:    &HealthHandler{check: deps.Health, version: deps.Version},
	}
}

// New builds the Echo instance with middleware and every route.
func New(deps *Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	SetupMiddleware(e, deps.Logger)
	RegisterRoutes(e, NewHandlers(deps))
	return e
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", h.Health.HandleHealth)

	api := e.Group("/api")
	api.GET("/health", h.Health.HandleHealth)

	docs := api.Group("/documents")
	docs.POST("", h.Documents.HandleUpload)
	docs.POST("/upload", h.Documents.HandleUpload)
	docs.GET("", h.Documents.HandleList)
	docs.POST("/generate", h.Documents.HandleGenerate)
	docs.GET("/:id", h.Documents.HandleGet)
	docs.DELETE("/:id", h.Documents.HandleDelete)
	docs.GET("/:id/facts", h.Documents.HandleGetFacts)
	docs.GET("/:id/extracted-info", h.Documents.HandleGetFacts)
	docs.POST("/:id/reprocess", h.Documents.HandleReprocess)

	docs.GET("/:id/clarifications", h.Clarify.HandleGetSession)
	docs.POST("/:id/clarifications/questions", h.Clarify.HandleQuestions)
	docs.POST("/:id/clarifications/answers", h.Clarify.HandleAnswers)
	docs.POST("/:id/clarifications/save", h.Clarify.HandleSave)
	api.GET("/clarifications/suggestions", h.Clarify.HandleSuggestions)

	api.PATCH("/facts/:id", h.Documents.HandlePatchFacts)
	api.PATCH("/extracted-info/:id", h.Documents.HandlePatchFacts)

	api.GET("/templates", h.Templates.HandleList)
	api.GET("/templates/:id", h.Templates.HandleGet)

	api.GET("/export/documents.xlsx", h.Export.HandleDocumentsXLSX)
}

// SetupMiddleware installs recovery, request ids and slog request logging.
func SetupMiddleware(e *echo.Echo, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.HTTPErrorHandler = ErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("elapsed_ms", v.Latency.Milliseconds()),
				slog.String("req_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "http.request", attrs...)
			return nil
		},
	}))
}

// requestContext copies the request id into the request context.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id != "" {
			c.SetRequest(c.Request().WithContext(common.WithRequestID(c.Request().Context(), id)))
		}
		return next(c)
	}
}

// HealthHandler reports liveness and store reachability.
type HealthHandler struct {
	check   func(ctx context.Context) error
	version string
}

func (h *HealthHandler) HandleHealth(c echo.Context) error {
	status, code := "ok", http.StatusOK
	body := map[string]any{"version": h.version}
	if h.check != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			body["error"] = err.Error()
		}
	}
	body["status"] = status
	return c.JSON(code, body)
}
