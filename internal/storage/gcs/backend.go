// Package gcs keeps the state record in a Google Cloud Storage object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appstorage "github.com/JakeFAU/page-watcher/internal/storage"
)

// Config captures the object that holds the record.
type Config struct {
	Bucket string
	Object string
}

type objectHandle interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) io.WriteCloser
}

type gcsObject struct {
	handle *storage.ObjectHandle
}

func (o gcsObject) NewReader(ctx context.Context) (io.ReadCloser, error) {
	r, err := o.handle.NewReader(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return r, nil
}

func (o gcsObject) NewWriter(ctx context.Context) io.WriteCloser {
	w := o.handle.NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

// Backend reads and replaces one GCS object. Object uploads are atomic, so a
// failed write leaves the previous generation in place.
type Backend struct {
	object   objectHandle
	location string
	client   *storage.Client
}

var _ appstorage.Backend = (*Backend)(nil)

// New creates a backend using an existing client. The caller owns the client.
func New(client *storage.Client, cfg Config) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Backend{
		object:   gcsObject{handle: client.Bucket(cfg.Bucket).Object(cfg.Object)},
		location: cfg.uri(),
	}, nil
}

// Open creates a client with Application Default Credentials and a backend
// that owns it. Close releases the client.
func Open(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Backend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	b, err := New(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	b.client = client
	return b, nil
}

// Read downloads the object or returns ErrNotFound.
func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	r, err := b.object.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, appstorage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.location, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.location, err)
	}
	return data, nil
}

// Write uploads data as the new object generation.
func (b *Backend) Write(ctx context.Context, data []byte) error {
	wc := b.object.NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		closeErr := wc.Close()
		if closeErr != nil {
			return fmt.Errorf("write %s: %w (close writer: %v)", b.location, err, closeErr)
		}
		return fmt.Errorf("write %s: %w", b.location, err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", b.location, err)
	}
	return nil
}

// Location returns the gs:// URI of the object.
func (b *Backend) Location() string {
	return b.location
}

// Close releases the client when the backend created it.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("close GCS client: %w", err)
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(c.Object) == "" {
		return fmt.Errorf("object name is required")
	}
	return nil
}

func (c Config) uri() string {
	return fmt.Sprintf("gs://%s/%s", c.Bucket, c.Object)
}
