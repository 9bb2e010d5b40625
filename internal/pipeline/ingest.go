package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ProcessUpload stages an uploaded payload to a temp file and processes it.
// The temp file is removed on every exit path; name is used as the video
// reference in metadata unless the source is archived.
func (e *Extractor) ProcessUpload(ctx context.Context, file io.Reader, name string, params Params) (*Outcome, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	localPath, err := e.stage(file, name)
	if err != nil {
		e.logger.Error("Failed to stage upload", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove staged upload", zap.String("path", localPath), zap.Error(err))
		}
	}()

	return e.process(ctx, localPath, filepath.Base(name), params)
}

func (e *Extractor) stage(file io.Reader, name string) (string, error) {
	dir := e.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	out, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to close upload: %w", err)
	}

	e.logger.Debug("Staged upload", zap.String("name", name), zap.String("local_path", out.Name()))
	return out.Name(), nil
}
