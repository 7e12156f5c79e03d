package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeConstraintViolation   = "CONSTRAINT_VIOLATION"
	CodeAuthenticationFailure = "AUTHENTICATION_FAILURE"
	CodeNotFound              = "NOT_FOUND"
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInternal              = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. They match any AppError with the same code.
var (
	ErrConstraintViolation   = &AppError{Code: CodeConstraintViolation}
	ErrAuthenticationFailure = &AppError{Code: CodeAuthenticationFailure}
	ErrNotFound              = &AppError{Code: CodeNotFound}
	ErrValidation            = &AppError{Code: CodeValidation}
	ErrUnauthorized          = &AppError{Code: CodeUnauthorized}
	ErrForbidden             = &AppError{Code: CodeForbidden}
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Field names the offending input for validation and constraint failures.
	Field string
	Err   error
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

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewConstraintViolation reports a write rejected by a uniqueness, required-field
// or referential rule.
func NewConstraintViolation(field, message string, err error) *AppError {
	return &AppError{
		Code:    CodeConstraintViolation,
		Message: message,
		Field:   field,
		Err:     err,
	}
}

// NewAuthenticationFailure never says which credential was wrong.
func NewAuthenticationFailure() *AppError {
	return &AppError{
		Code:    CodeAuthenticationFailure,
		Message: "Invalid username or password",
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
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

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsConstraintViolation reports whether err is, or wraps, a constraint violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsNotFound reports whether err is, or wraps, a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthenticationFailure reports whether err is, or wraps, a credential failure.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailure)
}

// HTTPStatus maps an error onto the status code used to report it.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	switch appErr.Code {
	case CodeConstraintViolation:
		return fiber.StatusConflict
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeAuthenticationFailure, CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
			Field: appErr.Field,
		}
		// Driver and internal errors stay in the logs.
		switch appErr.Code {
		case CodeInternal, CodeConstraintViolation:
		default:
			if appErr.Err != nil {
				response.Details = appErr.Err.Error()
			}
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
