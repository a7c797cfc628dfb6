package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBadRequest   = "BAD_REQUEST"
	CodeNotFound     = "NOT_FOUND"

	// Pipeline errors
	CodeDecodeError         = "DECODE_ERROR"
	CodeFetchError          = "FETCH_ERROR"
	CodeClassificationError = "CLASSIFICATION_ERROR"
	CodeStoreError          = "STORE_ERROR"
	CodeExternalError       = "EXTERNAL_ERROR"

	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinel values like
// ErrNotFound work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// DecodeError reports a MIME leaf whose payload could not be decoded.
func DecodeError(mimeType string, err error) *AppError {
	return &AppError{
		Code:    CodeDecodeError,
		Message: fmt.Sprintf("failed to decode %s part", mimeType),
		Status:  http.StatusUnprocessableEntity,
		Details: map[string]any{"mime_type": mimeType},
		Err:     err,
	}
}

// FetchError reports a single message that could not be retrieved.
func FetchError(messageID string, err error) *AppError {
	return &AppError{
		Code:    CodeFetchError,
		Message: fmt.Sprintf("failed to fetch message %s", messageID),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"message_id": messageID},
		Err:     err,
	}
}

// ClassificationError reports a classifier failure for one mail.
func ClassificationError(messageID string, err error) *AppError {
	return &AppError{
		Code:    CodeClassificationError,
		Message: fmt.Sprintf("failed to classify message %s", messageID),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"message_id": messageID},
		Err:     err,
	}
}

// StoreError reports an unavailable or failing persistence layer.
func StoreError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreError,
		Message: fmt.Sprintf("store error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ExternalError(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalError,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return New(CodeInternalError, message, http.StatusInternalServerError)
}

func InternalWithError(err error) *AppError {
	return Wrap(err, CodeInternalError, "internal server error", http.StatusInternalServerError)
}

func ConfigError(message string) *AppError {
	return New(CodeConfigError, message, http.StatusInternalServerError)
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound       = NotFound("resource")
	ErrUnauthorized   = Unauthorized("")
	ErrDecode         = New(CodeDecodeError, "decode failed", http.StatusUnprocessableEntity)
	ErrFetch          = New(CodeFetchError, "fetch failed", http.StatusBadGateway)
	ErrClassification = New(CodeClassificationError, "classification failed", http.StatusBadGateway)
	ErrStore          = New(CodeStoreError, "store failed", http.StatusInternalServerError)
)

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
