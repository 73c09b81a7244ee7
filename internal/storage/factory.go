package storage

import (
	"context"
	"fmt"

	"schemavault/internal/config"
	"schemavault/internal/core"
)

// NewStoreFromConfig creates a core.Store implementation based on the
// storage config type. projectDir roots the filesystem backend.
func NewStoreFromConfig(cfg config.StorageConfig, projectDir string) (core.Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires s3_bucket to be set")
		}
		if cfg.S3Region == "" {
			return nil, fmt.Errorf("s3 storage requires s3_region to be set")
		}
		return NewS3Store(context.Background(), S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "filesystem", "":
		if projectDir == "" {
			return nil, fmt.Errorf("filesystem storage requires a project directory")
		}
		return NewFileSystemStore(projectDir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
