package storage

import (
	types "FrameForge/pkg"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

type LocalStorage struct {
	rootPath string
}

func NewLocalStorage(localCfg types.LocalConfig) (*LocalStorage, error) {
	if localCfg.BasePath == "" {
		return nil, fmt.Errorf("base_path required for local storage")
	}
	if err := os.MkdirAll(localCfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root path: %w", err)
	}
	return &LocalStorage{rootPath: localCfg.BasePath}, nil
}

func (l *LocalStorage) path(bucket, key string) string {
	if bucket != "" {
		key = filepath.Join(bucket, filepath.FromSlash(key))
	}
	return filepath.Join(l.rootPath, filepath.FromSlash(key))
}

// Upload writes to a temp file in the target directory and renames it into
// place, so readers never observe a partially written object.
func (l *LocalStorage) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	fullPath := l.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := out.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (l *LocalStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (l *LocalStorage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (l *LocalStorage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	return l.readDir(bucket, prefix, false)
}

func (l *LocalStorage) ListPrefixes(ctx context.Context, bucket, prefix string) ([]string, error) {
	return l.readDir(bucket, prefix, true)
}

func (l *LocalStorage) readDir(bucket, prefix string, dirs bool) ([]string, error) {
	entries, err := os.ReadDir(l.path(bucket, dirPrefix(prefix)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() != dirs || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
