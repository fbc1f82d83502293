// Package s3 keeps the state record in an Amazon S3 object.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/JakeFAU/page-watcher/internal/storage"
)

// Config captures the object that holds the record.
type Config struct {
	Bucket string
	Key    string
	// UsePathStyle is needed by most S3-compatible servers such as MinIO.
	UsePathStyle bool
}

// API is the subset of the S3 client used by Backend.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Backend reads and replaces one S3 object. PutObject replaces the object
// atomically, so readers never observe a partial record.
type Backend struct {
	api    API
	bucket string
	key    string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a backend over an existing client.
func New(api API, cfg Config) (*Backend, error) {
	if api == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Backend{api: api, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Open loads the default AWS credential chain and region, then builds a backend.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return New(client, cfg)
}

// Read downloads the object or returns storage.ErrNotFound.
func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", b.Location(), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.Location(), err)
	}
	return data, nil
}

// Write uploads data as the new object.
func (b *Backend) Write(ctx context.Context, data []byte) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", b.Location(), err)
	}
	return nil
}

// Location returns the s3:// URI of the object.
func (b *Backend) Location() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.key)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("object key is required")
	}
	return nil
}
