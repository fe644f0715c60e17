package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/local/bookletd/internal/booklet"
	"github.com/local/bookletd/internal/storage"
)

// KindStorage labels failures of the blob store in job status and metrics.
const KindStorage = "storage"

// failureKind labels err for the job status.
func failureKind(err error) string {
	var se *StorageError
	if errors.As(err, &se) {
		return KindStorage
	}
	return booklet.Kind(err)
}

// isTransientError reports whether a storage failure looks like an outage
// rather than a problem with the job itself. Transient failures trip the
// storage breaker.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var se *StorageError
	if !errors.As(err, &se) {
		return false
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "serviceunavailable") ||
		strings.Contains(errStr, "slowdown")
}

// isTimeoutError reports whether the job ran out of time.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}
