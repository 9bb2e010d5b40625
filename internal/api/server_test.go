package api

import (
	"FrameForge/internal/batch"
	"FrameForge/internal/config"
	"FrameForge/internal/pipeline"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubProcessor struct{}

func (stubProcessor) ProcessUpload(ctx context.Context, file io.Reader, name string, params pipeline.Params) (*pipeline.Outcome, error) {
	return &pipeline.Outcome{BatchID: "b"}, nil
}

type stubBatches struct{}

func (stubBatches) ListBatches(ctx context.Context) ([]string, error) {
	return []string{"20240101_120000-abcd1234"}, nil
}

func (stubBatches) ReadMetadata(ctx context.Context, id string) (*batch.Metadata, error) {
	return nil, batch.ErrBatchNotFound
}

func (stubBatches) ListImages(ctx context.Context, id string) ([]string, error) {
	return nil, batch.ErrBatchNotFound
}

func (stubBatches) OpenImage(ctx context.Context, id, name string) (io.ReadCloser, error) {
	return nil, batch.ErrImageNotFound
}

func newTestServer() *Server {
	cfg := &config.Config{}
	cfg.Pipeline.FrameRate = 10
	cfg.Pipeline.ConfidenceThreshold = 0.5
	cfg.Pipeline.Methods = []string{"color"}
	return NewServer(stubProcessor{}, stubBatches{}, nil, cfg, zap.NewNop())
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/health", http.StatusOK, `"service":"frameforge"`},
		{"/batches", http.StatusOK, "20240101_120000-abcd1234"},
		{"/batches/unknown", http.StatusNotFound, "Not found"},
		{"/batches/unknown/images/frame_000000.jpg", http.StatusNotFound, "Not found"},
		{"/metrics", http.StatusOK, "go_goroutines"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestServerHistoryRouteOptional(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerCORSPreflight(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodOptions, "/process", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
