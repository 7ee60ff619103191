package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewPrecondition reports an operation that is not allowed in the current
// ticket state. Retrying it unchanged fails again.
func NewPrecondition(message string, details map[string]any) *DomainError {
	return NewDomainError("PRECONDITION_FAILED", message, http.StatusPreconditionFailed, details)
}

// NewRejection reports an option refused by a device constraint.
func NewRejection(option, value, reason string) error {
	return &RejectionError{Option: option, Value: value, Reason: reason}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// RejectionError is a structured option rejection an operator can act on.
type RejectionError struct {
	Option string
	Value  string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("option %s=%s rejected: %s", e.Option, e.Value, e.Reason)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return &DomainError{
			Code:       "OPTION_REJECTED",
			Message:    rejection.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details: map[string]any{
				"option": rejection.Option,
				"value":  rejection.Value,
				"reason": rejection.Reason,
			},
			Err: err,
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
