package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrFrozen           = errors.New("index is frozen")
	ErrNotFrozen        = errors.New("index is not frozen")
	ErrTextUnavailable  = errors.New("document text unavailable")
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrInvalidSpan      = errors.New("invalid span")
	ErrAmbiguousMatch   = errors.New("multiple index items match")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInternal         = errors.New("internal error")
)

type AppError struct {
	Err     error
	Op      string
	Message string
}

func (e *AppError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, op string, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: message,
	}
}

func Newf(sentinel error, op string, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsUsage reports whether err signals a lifecycle misuse of an index
// (searching before Freeze or mutating after it).
func IsUsage(err error) bool {
	return errors.Is(err, ErrFrozen) || errors.Is(err, ErrNotFrozen)
}

// Retryable reports whether a failure may succeed when attempted again.
// Index, span and text errors are deterministic and never are.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case IsUsage(err),
		errors.Is(err, ErrTextUnavailable),
		errors.Is(err, ErrOffsetOutOfRange),
		errors.Is(err, ErrInvalidSpan),
		errors.Is(err, ErrAmbiguousMatch),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrDocumentNotFound):
		return false
	default:
		return true
	}
}

// HTTPStatusCode maps err to the status the HTTP intake answers with.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidSpan),
		errors.Is(err, ErrOffsetOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
