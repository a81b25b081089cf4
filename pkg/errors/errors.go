package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError provides a structured error normalized from the upstream lottery API.
// Components above the gateway branch only on Code/StatusCode, never on raw
// transport details.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrTransient = &AppError{
		Code:       "TRANSIENT_FAILURE",
		Message:    "Upstream service temporarily unavailable",
		StatusCode: http.StatusBadGateway,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrAlreadyFavorite and ErrNotFavorite are semantic duplicates: the backend
	// already holds the state the mutation asked for. The favorite coordinator
	// absorbs them instead of surfacing an error.
	ErrAlreadyFavorite = &AppError{
		Code:       "FAVORITE_EXISTS",
		Message:    "House is already a favorite",
		StatusCode: http.StatusBadRequest,
	}
	ErrNotFavorite = &AppError{
		Code:       "FAVORITE_NOT_FOUND",
		Message:    "House is not a favorite",
		StatusCode: http.StatusBadRequest,
	}

	ErrMutationInFlight = &AppError{
		Code:       "MUTATION_IN_FLIGHT",
		Message:    "An identical mutation is already in progress",
		StatusCode: http.StatusConflict,
	}

	ErrBatchTooLarge = &AppError{
		Code:       "BATCH_TOO_LARGE",
		Message:    "Bulk favorite batch exceeds the allowed maximum",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal error",
		StatusCode: http.StatusInternalServerError,
	}
)

// RateLimitError is surfaced when the upstream answers 429. It carries the
// limiter metadata so callers can render a human-readable retry time.
type RateLimitError struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reset.IsZero() {
		return "rate limited, retry later"
	}
	return fmt.Sprintf("rate limited, retry after %s", time.Until(e.Reset).Round(time.Second))
}

// RetryAfter reports how long the caller should wait before retrying.
func (e *RateLimitError) RetryAfter() time.Duration {
	if e == nil || e.Reset.IsZero() {
		return 0
	}
	d := time.Until(e.Reset)
	if d < 0 {
		return 0
	}
	return d
}

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       ErrInternal.Code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternal.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternal.WithInternal(err)
}

// IsRateLimited reports whether err carries 429 limiter metadata.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// IsSemanticDuplicate reports whether the backend already holds the state the
// mutation asked for ("already a favorite" / "not a favorite").
func IsSemanticDuplicate(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		return false
	}
	return appErr.Code == ErrAlreadyFavorite.Code || appErr.Code == ErrNotFavorite.Code
}

// IsTransient reports whether err represents a retryable upstream failure.
func IsTransient(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		return false
	}
	return appErr.Code == ErrTransient.Code || appErr.StatusCode >= http.StatusInternalServerError
}
