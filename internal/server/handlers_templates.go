package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/legal-docs/internal/templates"
)

// TemplateHandler exposes the read-only template catalog.
type TemplateHandler struct {
	catalog *templates.Catalog
}

// HandleList returns every template, optionally narrowed by ?type= and ?category=.
func (h *TemplateHandler) HandleList(c echo.Context) error {
	list := h.catalog.Filter(c.QueryParam("type"), c.QueryParam("category"))
	return c.JSON(http.StatusOK, map[string]any{
		"templates":  list,
		"types":      h.catalog.Types(),
		"categories": h.catalog.Categories(),
	})
}

func (h *TemplateHandler) HandleGet(c echo.Context) error {
	t, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"template": t})
}
