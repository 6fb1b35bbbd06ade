package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/legal-docs/internal/async"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    common.CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// toAPIError maps domain errors onto HTTP statuses.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	}

	code, message := "INTERNAL_ERROR", err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code, message = appErr.Code, appErr.Message
	}

	status := http.StatusInternalServerError
	switch {
	case common.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrUnsupportedFileType):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, async.ErrAlreadyQueued):
		status, code = http.StatusConflict, "ALREADY_QUEUED"
	case errors.Is(err, storage.ErrFileTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, common.ErrExtractionService),
		errors.Is(err, common.ErrMalformedResponse):
		status = http.StatusBadGateway
	case errors.Is(err, async.ErrQueueClosed):
		status, code = http.StatusServiceUnavailable, "SHUTTING_DOWN"
	}

	out := &APIError{Status: status, Code: code, Message: message}
	if status == http.StatusInternalServerError && appErr == nil {
		out.Message = "An unexpected error occurred"
		out.Details = err.Error()
	}
	return out
}

// ErrorHandler renders every handler error as an APIError body.
// Usage: e.HTTPErrorHandler = ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	apiErr := toAPIError(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
