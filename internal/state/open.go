package state

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/storage"
	"github.com/JakeFAU/page-watcher/internal/storage/gcs"
	"github.com/JakeFAU/page-watcher/internal/storage/local"
	"github.com/JakeFAU/page-watcher/internal/storage/memory"
	"github.com/JakeFAU/page-watcher/internal/storage/s3"
)

// MemoryLocation selects the in-process backend.
const MemoryLocation = "memory"

// Open picks a backend from location and wraps it in a Store:
//
//	gs://bucket/object   Google Cloud Storage
//	s3://bucket/key      Amazon S3
//	memory               in-process
//	anything else        local file path
func Open(ctx context.Context, location string, logger *zap.Logger) (*Store, error) {
	backend, err := openBackend(ctx, location)
	if err != nil {
		return nil, err
	}
	return New(backend, logger), nil
}

func openBackend(ctx context.Context, location string) (storage.Backend, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("state location is required")
	case location == MemoryLocation:
		return memory.New(), nil
	case strings.HasPrefix(location, "gs://"):
		bucket, object, err := splitObjectURI(location)
		if err != nil {
			return nil, err
		}
		b, err := gcs.Open(ctx, gcs.Config{Bucket: bucket, Object: object})
		if err != nil {
			return nil, fmt.Errorf("open gcs state backend: %w", err)
		}
		return b, nil
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := splitObjectURI(location)
		if err != nil {
			return nil, err
		}
		b, err := s3.Open(ctx, s3.Config{Bucket: bucket, Key: key})
		if err != nil {
			return nil, fmt.Errorf("open s3 state backend: %w", err)
		}
		return b, nil
	default:
		b, err := local.New(local.Config{Path: location})
		if err != nil {
			return nil, fmt.Errorf("open file state backend: %w", err)
		}
		return b, nil
	}
}

func splitObjectURI(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse state location %q: %w", raw, err)
	}
	bucket := u.Host
	object := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("state location %q must look like %s://bucket/object", raw, u.Scheme)
	}
	return bucket, object, nil
}
