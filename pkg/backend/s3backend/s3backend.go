// Package s3backend adapts an S3-compatible object store to the
// backend.Backend contract, using ranged GetObject/PutObject and
// DeleteObject. It is grounded on the teacher's S3 block store
// (pkg/blocks/store/s3/store.go), trimmed to the three range-oriented
// operations the Cache Manager needs and without its prefix-listing
// and batch-delete helpers, which have no use in a per-object backend.
package s3backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/cachefs/pkg/backend"
)

// Config configures the S3 backend.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// Backend is an S3-backed implementation of backend.Backend.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New wraps an existing S3 client.
func New(client *s3.Client, config Config) *Backend {
	return &Backend{client: client, bucket: config.Bucket, keyPrefix: config.KeyPrefix}
}

// NewFromConfig builds an S3 client from config and the ambient AWS
// configuration (environment, shared config file, or instance role).
func NewFromConfig(ctx context.Context, config Config) (*Backend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3backend: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(config.Endpoint) })
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config), nil
}

func (b *Backend) key(path string) string {
	return b.keyPrefix + strings.TrimPrefix(path, "/")
}

// GetRange fetches buf-sized bytes of path starting at offset using a
// ranged GetObject call.
func (b *Backend) GetRange(ctx context.Context, path string, buf []byte, offset int64) (int, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(buf))-1)
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		if isNotFoundError(err) {
			return 0, backend.ErrUnsupported
		}
		return 0, fmt.Errorf("s3backend: get %q: %w", path, err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("s3backend: read body for %q: %w", path, err)
	}
	return n, nil
}

// PutRange uploads buf as the full object body at path. S3 has no
// native partial-object write; a caching layer that writes back to S3
// must do so at object granularity, so PutRange only supports offset 0
// writes of a complete object.
func (b *Backend) PutRange(ctx context.Context, path string, buf []byte, offset int64) (int, error) {
	if offset != 0 {
		return 0, backend.ErrUnsupported
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Body:   bytes.NewReader(buf),
	})
	if err != nil {
		return 0, fmt.Errorf("s3backend: put %q: %w", path, err)
	}
	return len(buf), nil
}

// Delete removes path from the bucket.
func (b *Backend) Delete(ctx context.Context, path string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return fmt.Errorf("s3backend: delete %q: %w", path, err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "NoSuchKey") || strings.Contains(s, "NotFound") || strings.Contains(s, "404")
}

var _ backend.Backend = (*Backend)(nil)
