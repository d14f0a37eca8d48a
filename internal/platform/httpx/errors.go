// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Code is a stable machine-readable error code returned to API callers.
type Code string

// Error codes carried in the `error` field of JSON error bodies.
const (
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeUnexpected        Code = "UNEXPECTED"
)

// Sentinel errors for the domain layer.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("conflict")
)

// StatusFor maps an error code to its HTTP status.
func StatusFor(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidTransition, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeFor classifies an error into its taxonomy code.
func CodeFor(err error) Code {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeUnexpected
	}
}

// RespondError maps a domain error to a JSON error response. Unexpected
// failures are reported without internal detail.
func RespondError(w http.ResponseWriter, err error) {
	code := CodeFor(err)
	detail := ""
	if code != CodeUnexpected {
		detail = err.Error()
	}
	Fail(w, code, detail)
}

// Fail writes an error body with the given code and optional detail.
func Fail(w http.ResponseWriter, code Code, detail string) {
	status := StatusFor(code)
	JSON(w, status, ErrorBody{
		Error:  code,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
