package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline errors
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrExtractionFailure   = errors.New("text extraction failed")
	ErrExtractionService   = errors.New("extraction service error")
	ErrMalformedResponse   = errors.New("malformed extraction service response")
	ErrLegacyWordFormat    = errors.New("legacy binary .doc files cannot be read; save as .docx or PDF")
	ErrTemplateNotFound    = fmt.Errorf("template %w", ErrNotFound)
	ErrFactRecordNotFound  = fmt.Errorf("fact record %w", ErrNotFound)
	ErrDocumentNotFound    = fmt.Errorf("document %w", ErrNotFound)
	ErrInvalidTransition   = errors.New("invalid document status transition")
)

// Error codes
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeExtractionFailure   = "EXTRACTION_FAILURE"
	CodeExtractionService   = "EXTRACTION_SERVICE_ERROR"
	CodeMalformedResponse   = "MALFORMED_RESPONSE"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// UnsupportedFileTypeError reports an extension no extractor handles.
func UnsupportedFileTypeError(fileType string) error {
	return NewAppError(CodeUnsupportedFileType, fmt.Sprintf("unsupported file type %q", fileType), ErrUnsupportedFileType)
}

// ExtractionFailureError wraps an OCR/PDF/Word engine error with the file path.
func ExtractionFailureError(path string, cause error) error {
	return NewAppError(CodeExtractionFailure, fmt.Sprintf("extract text from %s", path), errors.Join(ErrExtractionFailure, cause))
}

// ExtractionServiceError reports an AI call that produced nothing usable.
func ExtractionServiceError(message string, cause error) error {
	if cause == nil {
		return NewAppError(CodeExtractionService, message, ErrExtractionService)
	}
	return NewAppError(CodeExtractionService, message, errors.Join(ErrExtractionService, cause))
}

// MalformedResponseError reports AI content that is not the expected structure.
func MalformedResponseError(cause error) error {
	return NewAppError(CodeMalformedResponse, "response is not a valid fact record", errors.Join(ErrMalformedResponse, cause))
}

// NotFoundError reports a missing resource; sentinel is one of the *NotFound errors.
func NotFoundError(sentinel error, id string) error {
	return NewAppError(CodeNotFound, fmt.Sprintf("%v: %s", sentinel, id), sentinel)
}

// InvalidInputError reports a client mistake.
func InvalidInputError(message string) error {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

// InvalidTransitionError reports a status change the lifecycle forbids.
func InvalidTransitionError(from, to string) error {
	return NewAppError(CodeInvalidTransition, fmt.Sprintf("cannot move document from %s to %s", from, to), ErrInvalidTransition)
}

// IsNotFound reports whether err is any not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
