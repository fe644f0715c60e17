package booklet

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/local/bookletd/internal/document"
)

// InputValidationError means the input was rejected before any PDF work:
// nothing supplied, not a PDF, or a PDF without pages.
type InputValidationError struct {
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// MismatchedLengthError is raised when the two halves of a split booklet
// differ in page count.
type MismatchedLengthError struct {
	First  int
	Second int
}

func (e *MismatchedLengthError) Error() string {
	return fmt.Sprintf("halves differ in length: %d vs %d pages", e.First, e.Second)
}

// PipelineError wraps the first failure of a booklet run with the mode and
// stage it happened in.
type PipelineError struct {
	Mode  Mode
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("booklet mode %s: %s: %v", e.Mode, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindValidation    = "validation"
	KindParse         = "parse"
	KindPageIndex     = "page_index"
	KindMismatch      = "mismatched_length"
	KindSerialization = "serialization"
	KindCancelled     = "cancelled"
	KindInternal      = "internal"
)

// Kind classifies err for metrics labels and job status.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var valErr *InputValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}
	var parseErr *document.ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}
	var idxErr *document.PageIndexError
	if errors.As(err, &idxErr) {
		return KindPageIndex
	}
	var lenErr *MismatchedLengthError
	if errors.As(err, &lenErr) {
		return KindMismatch
	}
	var serErr *document.SerializationError
	if errors.As(err, &serErr) {
		return KindSerialization
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// HTTPStatus maps err to the status code the HTTP layer answers with.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindParse:
		return http.StatusUnprocessableEntity
	case KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
