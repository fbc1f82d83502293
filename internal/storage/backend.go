// Package storage defines the byte-level backend used to persist watch state.
// This abstraction keeps the state codec independent of where the record lives
// (the local filesystem, Google Cloud Storage, Amazon S3, or memory).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no record has been written yet.
var ErrNotFound = errors.New("storage: record not found")

// Backend reads and replaces a single record.
type Backend interface {
	// Read returns the stored bytes or ErrNotFound.
	Read(ctx context.Context) ([]byte, error)
	// Write atomically replaces the stored bytes.
	Write(ctx context.Context, data []byte) error
	// Location describes where the record lives, for logs.
	Location() string
}
