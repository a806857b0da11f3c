// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in API responses.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeDuplicateSlug        = "DUPLICATE_SLUG"
	CodeDuplicateName        = "DUPLICATE_NAME"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeInternal             = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewDuplicateSlugError reports a slug uniqueness violation detected at commit time.
func NewDuplicateSlugError(slug string) *AppError {
	return &AppError{
		Code:    CodeDuplicateSlug,
		Message: fmt.Sprintf("A post with slug %q already exists", slug),
	}
}

// NewDuplicateNameError reports a category name uniqueness violation.
func NewDuplicateNameError(name string) *AppError {
	return &AppError{
		Code:    CodeDuplicateName,
		Message: fmt.Sprintf("A category named %q already exists", name),
	}
}

func NewPayloadTooLargeError(maxBytes int64) *AppError {
	return &AppError{
		Code:    CodePayloadTooLarge,
		Message: fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)),
	}
}

func NewUnsupportedMediaTypeError(message string) *AppError {
	return &AppError{
		Code:    CodeUnsupportedMediaType,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response. Internal error detail
// is never echoed to the client; callers log it server-side.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := ErrorResponse{Success: false}

	if appErr, ok := err.(*AppError); ok {
		response.Error = appErr.Message
		response.Code = appErr.Code
	} else {
		response.Error = err.Error()
	}

	return c.Status(status).JSON(response)
}
