package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"infostore/internal/domain/models/infostore"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string { return e.Message }
func (e *ValidationError) Error() string { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrUserInput covers caller mistakes: oversized values, wrong folder type.
	ErrUserInput = errors.New("invalid user input")
	// ErrConcurrentModification means an optimistic predicate matched no rows.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrCodeError marks a programming bug in the catalog or statement builder.
	// Retrying never helps.
	ErrCodeError = errors.New("code error")
	// ErrTryAgain marks a transient failure; the whole read may be retried.
	ErrTryAgain = errors.New("try again")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (document, folder, reservation)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// UserInputError is a caller mistake that is not a size violation,
// e.g. targeting a folder that does not hold documents.
type UserInputError struct {
	Message string
}

func (e *UserInputError) Error() string { return e.Message }
func (e *UserInputError) StatusCode() int { return http.StatusBadRequest }
func (e *UserInputError) Is(target error) bool { return target == ErrUserInput }

// Truncation describes one value that exceeds its column budget.
type Truncation struct {
	Field  infostore.Field
	Limit  int // bytes allowed
	Length int // bytes supplied
}

// TruncationError lists every field whose value does not fit its column.
type TruncationError struct {
	Truncations []Truncation
}

func (e *TruncationError) Error() string {
	parts := make([]string, 0, len(e.Truncations))
	for _, t := range e.Truncations {
		parts = append(parts, fmt.Sprintf("%s (%d > %d bytes)", t.Field, t.Length, t.Limit))
	}
	return "values too long: " + strings.Join(parts, ", ")
}

// Fields returns the offending fields in report order.
func (e *TruncationError) Fields() []infostore.Field {
	fields := make([]infostore.Field, 0, len(e.Truncations))
	for _, t := range e.Truncations {
		fields = append(fields, t.Field)
	}
	return fields
}

func (e *TruncationError) StatusCode() int { return http.StatusBadRequest }
func (e *TruncationError) Is(target error) bool { return target == ErrUserInput }

// ConcurrentModificationError reports that another writer committed after
// the caller's last read.
type ConcurrentModificationError struct {
	ContextID    int64
	DocumentID   int64
	LastModified int64 // timestamp the caller observed
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("document %d in context %d was modified after %d", e.DocumentID, e.ContextID, e.LastModified)
}

func (e *ConcurrentModificationError) StatusCode() int { return http.StatusConflict }
func (e *ConcurrentModificationError) Is(target error) bool { return target == ErrConcurrentModification }

// CodeError wraps a failure caused by a bug rather than by input or timing.
type CodeError struct {
	Message string
	Err     error
}

func (e *CodeError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CodeError) Unwrap() error { return e.Err }
func (e *CodeError) StatusCode() int { return http.StatusInternalServerError }
func (e *CodeError) Is(target error) bool { return target == ErrCodeError }

// NewCodeError formats a CodeError without a cause.
func NewCodeError(format string, args ...any) *CodeError {
	return &CodeError{Message: fmt.Sprintf(format, args...)}
}

// TryAgainError wraps a transient database failure.
type TryAgainError struct {
	Op  string
	Err error
}

func (e *TryAgainError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TryAgainError) Unwrap() error { return e.Err }
func (e *TryAgainError) StatusCode() int { return http.StatusServiceUnavailable }
func (e *TryAgainError) Is(target error) bool { return target == ErrTryAgain }
