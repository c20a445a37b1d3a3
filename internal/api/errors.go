// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/library"
	"github.com/promptcad/backend/internal/models"
	"github.com/promptcad/backend/internal/preview"
	"github.com/promptcad/backend/internal/storage"
)

// Error codes
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeHTTP         = "HTTP_ERROR"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`

	cause error
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidInput,
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		err.Detail = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		cause:   cause,
	}
	if cause != nil {
		err.Detail = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		err.Detail = cause.Error()
	}
	return err
}

// FromDomainError maps a sentinel error of the domain packages onto an
// APIError. Anything unrecognised becomes an internal error.
func FromDomainError(message string, err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, models.ErrInvalidParams),
		errors.Is(err, storage.ErrInvalidProjectName),
		errors.Is(err, library.ErrInvalidFilename),
		errors.Is(err, library.ErrWrongExtension):
		return NewBadRequestError(message, err)
	case errors.Is(err, storage.ErrProjectNotFound):
		return NewNotFoundError("project", "", err).withMessage(message)
	case errors.Is(err, storage.ErrShapeNotFound):
		return NewNotFoundError("shape", "", err).withMessage(message)
	case errors.Is(err, library.ErrNotFound):
		return NewNotFoundError("library shape", "", err).withMessage(message)
	case errors.Is(err, preview.ErrNotFound):
		return NewNotFoundError("preview", "", err).withMessage(message)
	default:
		return NewInternalError(message, err)
	}
}

func (e *APIError) withMessage(message string) *APIError {
	e.Message = message
	return e
}

// ErrorHandler returns the echo error handler rendering APIError bodies.
// Usage: e.HTTPErrorHandler = api.ErrorHandler(logger)
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = fromHTTPError(httpErr)
		default:
			apiErr = NewInternalError("An unexpected error occurred", err)
		}

		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("code", apiErr.Code),
				zap.String("detail", apiErr.Detail),
				zap.Stack("stack"))
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(apiErr.Status)
			return
		}
		c.JSON(apiErr.Status, apiErr)
	}
}

func fromHTTPError(e *echo.HTTPError) *APIError {
	apiErr := &APIError{
		Status:  e.Code,
		Code:    CodeHTTP,
		Message: fmt.Sprintf("%v", e.Message),
		cause:   e.Internal,
	}
	if e.Internal != nil {
		apiErr.Detail = e.Internal.Error()
	}
	switch {
	case e.Code == http.StatusNotFound:
		apiErr.Code = CodeNotFound
	case e.Code == http.StatusTooManyRequests:
		apiErr.Code = CodeRateLimited
	case e.Code >= 400 && e.Code < 500:
		apiErr.Code = CodeInvalidInput
	case e.Code >= 500:
		apiErr.Code = CodeInternal
	}
	return apiErr
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
