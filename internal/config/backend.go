package config

import (
	"context"
	"fmt"

	"github.com/marmos91/cachefs/pkg/backend"
	"github.com/marmos91/cachefs/pkg/backend/httpbackend"
	"github.com/marmos91/cachefs/pkg/backend/mirrorbackend"
	"github.com/marmos91/cachefs/pkg/backend/s3backend"
)

// BuildBackend constructs the object backend selected by cfg.Backend.Type.
func BuildBackend(ctx context.Context, cfg *BackendConfig) (backend.Backend, error) {
	switch cfg.Type {
	case "http":
		if cfg.HTTP == nil {
			return nil, fmt.Errorf("config: backend.type is %q but backend.http is not set", cfg.Type)
		}
		return httpbackend.New(httpbackend.Config{
			BaseURL: cfg.HTTP.BaseURL,
			Token:   cfg.HTTP.Token,
			Timeout: cfg.HTTP.Timeout,
		}), nil

	case "s3":
		if cfg.S3 == nil {
			return nil, fmt.Errorf("config: backend.type is %q but backend.s3 is not set", cfg.Type)
		}
		return s3backend.NewFromConfig(ctx, s3backend.Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			KeyPrefix:      cfg.S3.KeyPrefix,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})

	case "mirror":
		if cfg.Mirror == nil {
			return nil, fmt.Errorf("config: backend.type is %q but backend.mirror is not set", cfg.Type)
		}
		return mirrorbackend.New(cfg.Mirror.Root)

	default:
		return nil, fmt.Errorf("config: unknown backend.type %q", cfg.Type)
	}
}
