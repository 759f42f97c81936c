package blobstore

import (
	"context"
	"fmt"

	"ragforge/internal/config"
	"ragforge/internal/objectstore"
)

// New builds the BlobStore named by cfg.Kind, following the same
// backend-selection shape as databases.NewManager.
func New(ctx context.Context, cfg config.BlobStoreConfig) (BlobStore, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewFromObjectStore(objectstore.NewMemoryStore()), nil
	case "local":
		dir := cfg.BaseDir
		if dir == "" {
			dir = "./data/blobs"
		}
		store, err := objectstore.NewLocalStore(dir)
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return NewFromObjectStore(store), nil
	case "s3":
		s3cfg := cfg.S3
		if s3cfg.Bucket == "" {
			s3cfg.Bucket = cfg.Bucket
		}
		if s3cfg.Region == "" {
			s3cfg.Region = cfg.Region
		}
		if s3cfg.Endpoint == "" {
			s3cfg.Endpoint = cfg.Endpoint
		}
		store, err := objectstore.NewS3Store(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("init s3 blob store: %w", err)
		}
		return NewFromObjectStore(store), nil
	default:
		return nil, fmt.Errorf("unsupported blob store kind: %s", cfg.Kind)
	}
}
