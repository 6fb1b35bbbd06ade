package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler serves spreadsheet exports.
type ExportHandler struct {
	exporter Exporter
	logger   *slog.Logger
}

func (h *ExportHandler) HandleDocumentsXLSX(c echo.Context) error {
	start := time.Now()
	data, err := h.exporter.DocumentsXLSX(c.Request().Context())
	if err != nil {
		h.logger.Error("export.documents.failed", "error", err)
		return err
	}
	name := fmt.Sprintf("documents-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	h.logger.Info("export.documents.ok", "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())
	return c.Blob(http.StatusOK, xlsxMIME, data)
}
