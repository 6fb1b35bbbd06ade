package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/legal-docs/internal/clarify"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// ClarifyHandler drives the per-document clarification session.
type ClarifyHandler struct {
	deps *Dependencies
}

func (h *ClarifyHandler) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.deps.Documents.Get(c.Request().Context(), id); err != nil {
		return err
	}
	sess := h.deps.Sessions.Get(id)
	return c.JSON(http.StatusOK, map[string]any{
		"history": sess.History(),
		"pending": sess.Pending(),
	})
}

// HandleQuestions generates clarifying questions from the document's
// classification and current facts. Lower confidence asks more questions.
func (h *ClarifyHandler) HandleQuestions(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	doc, err := h.deps.Documents.Get(ctx, id)
	if err != nil {
		return err
	}
	rec, err := h.deps.Facts.GetByDocument(ctx, id)
	if err != nil {
		return err
	}

	var confidence float64
	if doc.Confidence != nil {
		confidence = *doc.Confidence
	}
	docType := entity.DefaultClassification().Type
	if doc.DocumentType != nil && *doc.DocumentType != "" {
		docType = *doc.DocumentType
	}

	questions, err := h.deps.Clarifier.GenerateQuestions(ctx, docType, confidence, rec)
	if err != nil {
		return err
	}
	h.deps.Sessions.Get(id).SetPending(questions)

	suggestions := make(map[string][]string)
	for _, q := range questions {
		if s := clarify.SuggestAnswers(q); len(s) > 0 {
			suggestions[q] = s
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"questions":     questions,
		"questionCount": clarify.QuestionCount(confidence),
		"suggestions":   suggestions,
	})
}

type answersRequest struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Answers  []entity.QA `json:"answers"`
}

// HandleAnswers appends one pair or a batch to the session history.
func (h *ClarifyHandler) HandleAnswers(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.deps.Documents.Get(c.Request().Context(), id); err != nil {
		return err
	}
	var req answersRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	pairs := req.Answers
	if strings.TrimSpace(req.Question) != "" {
		pairs = append(pairs, entity.QA{Question: req.Question, Answer: req.Answer})
	}
	if len(pairs) == 0 {
		return NewBadRequestError("no answers supplied", nil)
	}
	for i, qa := range pairs {
		if strings.TrimSpace(qa.Question) == "" {
			return NewBadRequestError(fmt.Sprintf("answers[%d].question is required", i), nil)
		}
	}

	sess := h.deps.Sessions.Get(id)
	for _, qa := range pairs {
		sess.AddQA(qa.Question, qa.Answer)
	}
	return c.JSON(http.StatusOK, map[string]any{"history": sess.History()})
}

// HandleSave stores the session history in the fact record's additional
// info and ends the session.
func (h *ClarifyHandler) HandleSave(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	rec, err := h.deps.Facts.GetByDocument(ctx, id)
	if err != nil {
		return err
	}
	history := h.deps.Sessions.Get(id).History()
	if len(history) == 0 {
		return NewBadRequestError("no clarification answers to save", nil)
	}

	saved := clarify.SaveTo(rec, history)
	updated, err := h.deps.Facts.Patch(ctx, rec.ID, map[string]any{
		entity.AdditionalInfoKey: map[string]any{clarify.HistoryKey: rec.AdditionalInfo[clarify.HistoryKey]},
	})
	if err != nil {
		return err
	}
	h.deps.Sessions.Drop(id)
	h.deps.Logger.Info("clarify.save.ok", "document_id", id, "facts_id", rec.ID, "saved", saved)
	return c.JSON(http.StatusOK, map[string]any{"facts": updated, "saved": saved})
}

func (h *ClarifyHandler) HandleSuggestions(c echo.Context) error {
	q := c.QueryParam("question")
	if strings.TrimSpace(q) == "" {
		return NewBadRequestError("question is required", nil)
	}
	s := clarify.SuggestAnswers(q)
	if s == nil {
		s = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": s})
}
