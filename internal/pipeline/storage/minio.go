package storage

import (
	types "FrameForge/pkg"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOStorage struct {
	client *minio.Client
}

func NewMinIOStorage(cfg types.MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint required for minio storage")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIOStorage{client: client}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (m *MinIOStorage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (m *MinIOStorage) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	_, err := m.client.PutObject(ctx, bucket, key, body, -1, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (m *MinIOStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	body, err := m.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (m *MinIOStorage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrapErr(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, m.wrapErr(key, err)
	}
	return obj, nil
}

func (m *MinIOStorage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	names, _, err := m.list(ctx, bucket, prefix)
	return names, err
}

func (m *MinIOStorage) ListPrefixes(ctx context.Context, bucket, prefix string) ([]string, error) {
	_, prefixes, err := m.list(ctx, bucket, prefix)
	return prefixes, err
}

func (m *MinIOStorage) list(ctx context.Context, bucket, prefix string) ([]string, []string, error) {
	p := dirPrefix(prefix)
	var names, prefixes []string
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: p}) {
		if obj.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, p)
		if name == "" {
			continue
		}
		if strings.HasSuffix(name, "/") {
			prefixes = append(prefixes, strings.TrimSuffix(name, "/"))
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	sort.Strings(prefixes)
	return names, prefixes, nil
}

func (m *MinIOStorage) wrapErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
