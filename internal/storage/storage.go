// Package storage keeps job inputs and finished booklets, either on local
// disk or in S3, optionally encrypted at rest.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("storage: object not found")

// Metadata travels with a stored object.
type Metadata map[string]string

// Blobs is the object store the service writes to.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte, meta Metadata) error
	Get(ctx context.Context, key string) ([]byte, Metadata, error)
	Delete(ctx context.Context, key string) error
	// Prune removes objects last written before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
}

// InputKey is where the upload of a job is stored.
func InputKey(jobID string) string { return "inputs/" + jobID + ".pdf" }

// OutputKey is where the booklet of a job is stored.
func OutputKey(jobID string) string { return "outputs/" + jobID + ".pdf" }

// Backend names accepted by Open.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Open returns the configured backend. The local backend only uses the
// password from s3opts.
func Open(ctx context.Context, backend, localDir string, s3opts S3Options) (Blobs, error) {
	switch backend {
	case "", BackendLocal:
		return NewLocal(localDir, s3opts.Password)
	case BackendS3:
		return NewS3Client(ctx, s3opts)
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}
