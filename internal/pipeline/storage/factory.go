package storage

import (
	types "FrameForge/pkg"
	"fmt"
	"strings"
)

func NewStorage(cfg types.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "s3":
		return NewS3Storage(cfg.S3)
	case "minio":
		return NewMinIOStorage(cfg.MinIO)
	case "local", "":
		return NewLocalStorage(cfg.Local)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Type)
	}
}

// Bucket resolves the bucket name for the configured backend.
func Bucket(cfg types.StorageConfig) string {
	if cfg.Bucket != "" {
		return cfg.Bucket
	}
	switch strings.ToLower(cfg.Type) {
	case "s3":
		return cfg.S3.Bucket
	case "minio":
		return cfg.MinIO.Bucket
	default:
		return ""
	}
}
