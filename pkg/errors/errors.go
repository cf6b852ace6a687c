// Package errors carries the typed error taxonomy the API speaks. Every
// error that crosses a handler boundary resolves to one Code, and the code
// alone decides HTTP status, retryability and what the caller may see.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class in API responses.
type Code string

const (
	// CodeValidation covers malformed or out-of-policy input, including
	// transfer amounts below the configured minimums.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeInsufficientFunds rejects a debit that would push a balance
	// bucket below zero.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"

	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"

	// CodeConflict marks uniqueness collisions, for example a referral code
	// already taken.
	CodeConflict Code = "CONFLICT"

	// CodeStateConflict marks an operation that is legal in general but not
	// for the member's current state, such as flushing a temporary balance
	// while the member is not in grace.
	CodeStateConflict Code = "STATE_CONFLICT"

	// CodeIdempotency rejects a reused Idempotency-Key whose first request
	// carried a different payload.
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"

	CodeRateLimit Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal  Code = "INTERNAL_ERROR"

	// CodeDependency covers failures of the payment provider, SMTP relay,
	// Postgres or Redis that the member can do nothing about.
	CodeDependency Code = "DEPENDENCY_ERROR"
)

// Metadata is the response policy attached to a Code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
	CodeInsufficientFunds: {http.StatusBadRequest, false, "insufficient funds", false},
	CodeUnauthorized:      {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:         {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:          {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:     {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:       {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:         {http.StatusTooManyRequests, false, "rate limit exceeded", false},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor resolves the response policy for a code. Unknown codes fall
// back to the internal-error policy so nothing leaks by accident.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error the services return.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

// New builds a typed error.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// Code returns the failure class, CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Message returns the operator-facing message.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns the structured payload attached with WithDetails.
func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches a structured payload. Whether it reaches the caller
// is decided by the code's DetailsAllowed policy, not here.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the typed error from anywhere in the chain, nil when absent.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
