package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/async"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// DocumentHandler serves uploads, document records, fact records and
// document generation.
type DocumentHandler struct {
	deps *Dependencies
}

// HandleUpload accepts one or more multipart "files" parts, stores them,
// creates documents in the uploaded state and queues each for processing.
// Every part is checked before anything is written.
func (h *DocumentHandler) HandleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form data", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		return NewBadRequestError("No files uploaded", nil)
	}

	limit := h.deps.MaxUploadBytes
	if limit <= 0 {
		limit = constants.MaxUploadBytes
	}
	for _, fh := range files {
		ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
		if !constants.IsAllowedExt(ext) {
			return common.UnsupportedFileTypeError(ext)
		}
		if fh.Size > limit {
			return &APIError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, limit),
			}
		}
	}

	ctx := c.Request().Context()
	out := make([]*entity.Document, 0, len(files))
	var failed []uploadFailure
	var firstErr error
	for _, fh := range files {
		doc, err := h.store(c, fh)
		if err != nil {
			apiErr := toAPIError(err)
			h.deps.Logger.Error("upload.store.failed", "file", fh.Filename, "error", err)
			failed = append(failed, uploadFailure{FileName: fh.Filename, Code: apiErr.Code, Message: apiErr.Message})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, doc)

		job := async.Job{DocumentID: doc.ID, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}
		if err := h.deps.Queue.Enqueue(ctx, job); err != nil {
			h.deps.Logger.Warn("upload.enqueue.failed", "document_id", doc.ID, "error", err)
		}
	}
	if len(out) == 0 {
		return firstErr
	}
	body := map[string]any{"documents": out}
	if len(failed) > 0 {
		body["failed"] = failed
	}
	return c.JSON(http.StatusCreated, body)
}

// uploadFailure reports a file of a multi-file upload that was not stored.
type uploadFailure struct {
	FileName string `json:"fileName"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func (h *DocumentHandler) store(c echo.Context, fh *multipart.FileHeader) (*entity.Document, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, NewBadRequestError("failed to read upload", err)
	}
	defer src.Close()

	stored, err := h.deps.Files.Save(fh.Filename, src)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		ID:           uuid.NewString(),
		FileName:     stored.Name,
		OriginalName: fh.Filename,
		FileType:     stored.Ext,
		FileSize:     stored.Size,
		UploadedAt:   time.Now().UTC(),
		Status:       constants.StatusUploaded,
	}
	if err := h.deps.Documents.Create(c.Request().Context(), doc); err != nil {
		_ = h.deps.Files.Delete(stored.Name)
		return nil, err
	}
	return doc, nil
}

func (h *DocumentHandler) HandleList(c echo.Context) error {
	docs, err := h.deps.Documents.List(c.Request().Context())
	if err != nil {
		return err
	}
	if status := c.QueryParam("status"); status != "" {
		filtered := docs[:0]
		for _, d := range docs {
			if string(d.Status) == status {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

func (h *DocumentHandler) HandleGet(c echo.Context) error {
	doc, err := h.deps.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"document": doc})
}

// HandleDelete removes the document and its facts, then the stored bytes.
// The bytes stay in place when the record cannot be deleted.
func (h *DocumentHandler) HandleDelete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	doc, err := h.deps.Documents.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := h.deps.Documents.Delete(ctx, id); err != nil {
		return err
	}
	if err := h.deps.Files.Delete(doc.FileName); err != nil {
		h.deps.Logger.Warn("document.delete.file_failed", "document_id", id, "error", err)
	}
	h.deps.Sessions.Drop(id)
	return c.JSON(http.StatusOK, map[string]any{"message": "Document deleted successfully"})
}

func (h *DocumentHandler) HandleGetFacts(c echo.Context) error {
	rec, err := h.deps.Facts.GetByDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"facts": rec})
}

// HandlePatchFacts applies a reviewer's partial edit: only the keys in the
// body change and null clears a named fact.
func (h *DocumentHandler) HandlePatchFacts(c echo.Context) error {
	var patch map[string]any
	// body only: Bind would copy the :id path param into the map
	if err := (&echo.DefaultBinder{}).BindBody(c, &patch); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(patch) == 0 {
		return NewBadRequestError("no fields to update", nil)
	}
	rec, err := h.deps.Facts.Patch(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"facts": rec})
}

// HandleReprocess queues another processing attempt. It is refused while an
// attempt for the same document is queued or running.
func (h *DocumentHandler) HandleReprocess(c echo.Context) error {
	ctx := c.Request().Context()
	doc, err := h.deps.Documents.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if doc.Status == constants.StatusProcessing {
		return NewConflictError("document is already processing")
	}
	job := async.Job{DocumentID: doc.ID, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}
	if err := h.deps.Queue.Enqueue(ctx, job); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]any{"document": doc})
}

type generateRequest struct {
	TemplateID      string `json:"templateId"`
	FactsID         string `json:"factsId"`
	ExtractedInfoID string `json:"extractedInfoId"`
	DocumentID      string `json:"documentId"`
}

// factsKey picks the identifier the client sent.
func (r generateRequest) factsKey() string {
	for _, v := range []string{r.FactsID, r.ExtractedInfoID, r.DocumentID} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// HandleGenerate renders a template from a fact record. The facts id may be
// a fact record id or the id of the document that owns the record. Missing
// required fields are reported in the validation, not as an error.
func (h *DocumentHandler) HandleGenerate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	v := common.NewValidator().
		Field("templateId", req.TemplateID, common.Required, common.MaxLength(128)).
		Field("factsId", req.factsKey(), common.Required, common.MaxLength(128))
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := h.deps.Catalog.Get(req.TemplateID); err != nil {
		return err
	}

	key := req.factsKey()
	rec, err := h.deps.Facts.Get(ctx, key)
	if errors.Is(err, common.ErrFactRecordNotFound) {
		rec, err = h.deps.Facts.GetByDocument(ctx, key)
	}
	if err != nil {
		return err
	}

	out, tpl, err := h.deps.Generator.Generate(req.TemplateID, rec)
	if err != nil {
		return err
	}
	h.deps.Logger.Info("document.generate.ok",
		"template_id", tpl.ID,
		"facts_id", rec.ID,
		"valid", out.Validation.IsValid,
		"missing", len(out.Validation.MissingFields),
	)
	return c.JSON(http.StatusOK, map[string]any{
		"document":   out.Document,
		"validation": out.Validation,
		"template":   tpl,
	})
}
