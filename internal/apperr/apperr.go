// Package apperr holds the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_FAILED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeValidationBlocked Code = "VALIDATION_BLOCKED"
	CodeConflict          Code = "CONFLICT"
	CodeForbidden         Code = "FORBIDDEN"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeRemote            Code = "REMOTE_ERROR"
	CodePersistence       Code = "PERSISTENCE_ERROR"
	CodePartialFailure    Code = "PARTIAL_FAILURE"
)

// Error is a typed failure. Status is only set for remote errors, where it
// carries the upstream HTTP status.
type Error struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Code: CodeValidation}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition}
	ErrValidationBlocked = &Error{Code: CodeValidationBlocked}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrForbidden         = &Error{Code: CodeForbidden}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrRemote            = &Error{Code: CodeRemote}
	ErrPersistence       = &Error{Code: CodePersistence}
	ErrPartialFailure    = &Error{Code: CodePartialFailure}
)

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("transition from %s to %s is not allowed", from, to),
		Details: map[string]interface{}{"from": from, "to": to},
	}
}

func ValidationBlocked(failed []string) *Error {
	return &Error{
		Code:    CodeValidationBlocked,
		Message: "validation checks failed; override with a reason to proceed",
		Details: map[string]interface{}{"failedChecks": failed},
	}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Remote wraps a non-2xx answer from the core-banking API.
func Remote(status int, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("core banking request failed with status %d", status)
	}
	return &Error{Code: CodeRemote, Message: msg, Status: status}
}

func Persistence(op string, err error) *Error {
	return &Error{Code: CodePersistence, Message: op + " failed", Err: err}
}

func PartialFailure(msg string, details map[string]interface{}, err error) *Error {
	return &Error{Code: CodePartialFailure, Message: msg, Details: details, Err: err}
}

// HTTPStatus maps an error to the status a handler should answer with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeValidationBlocked:
		return http.StatusUnprocessableEntity
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRemote:
		// upstream 401 means our service credentials, not the caller's token
		if e.Status >= 400 && e.Status < 500 && e.Status != http.StatusUnauthorized {
			return e.Status
		}
		return http.StatusBadGateway
	case CodePartialFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a user.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
