package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that branch on the outcome
// rather than on the wire code.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindInvalidState       Kind = "INVALID_STATE"
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"
	KindTransient          Kind = "TRANSIENT"
	KindValidation         Kind = "VALIDATION"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindInternal           Kind = "INTERNAL"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
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

// Retryable reports whether the whole call may be safely repeated.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransient
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the Kind of the first AppError in err's chain.
// Errors that carry no AppError are KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ---- Settlement (SET) ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "SET_404", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrConflict(message string) *AppError {
	return New(KindConflict, "SET_409", message, http.StatusConflict)
}

// ErrDuplicate wraps a storage unique-constraint violation.
func ErrDuplicate(entity string, err error) *AppError {
	return Wrap(KindConflict, "SET_409", fmt.Sprintf("%s already exists", entity), http.StatusConflict, err)
}

func ErrInvalidState(message string) *AppError {
	return New(KindInvalidState, "SET_422", message, http.StatusUnprocessableEntity)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "SET_400", "Amount must be positive with at most two fraction digits", http.StatusBadRequest)
}

func ErrCurrencyMismatch(expected, got string) *AppError {
	return New(KindConflict, "SET_410", fmt.Sprintf("currency %s does not match wallet currency %s", got, expected), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(KindUnauthorized, "AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(KindUnauthorized, "AUTH_002", "Operator role not permitted", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrTransient marks a storage failure after which the caller may retry the call.
func ErrTransient(err error) *AppError {
	return Wrap(KindTransient, "SYS_002", "Service temporarily unavailable, retry the request", http.StatusServiceUnavailable, err)
}

// ErrInvariantViolation reports a ledger misuse. It is a programming error
// and is never downgraded to a client error.
func ErrInvariantViolation(message string) *AppError {
	return New(KindInvariantViolation, "SYS_003", message, http.StatusInternalServerError)
}

// Validation returns a REQ_001 validation error.
func Validation(message string) *AppError {
	return New(KindValidation, "REQ_001", message, http.StatusBadRequest)
}
