package detector

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPoseServer(t *testing.T, handler http.HandlerFunc) *PoseClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d, err := NewPoseClientFromOptions(map[string]interface{}{
		"url":              srv.URL,
		"timeout_sec":      5,
		"model_complexity": 1,
	}, zap.NewNop())
	require.NoError(t, err)
	return d.(*PoseClient)
}

func TestPoseClient_Detect(t *testing.T) {
	c := newPoseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pose", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "1", r.URL.Query().Get("model_complexity"))

		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, body)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"landmarks": []map[string]float64{
				{"x": 0.1, "y": 0.2, "z": 0, "visibility": 0.97},
				{"x": 0.9, "y": 0.8, "z": 0, "visibility": 0.5},
			},
		})
	})

	res, err := c.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.True(t, res.Detected)
	require.Len(t, res.Landmarks, 2)
	assert.InDelta(t, 0.97, res.Landmarks[0].Visibility, 1e-9)
	assert.InDelta(t, 0.8, res.Landmarks[1].Y, 1e-9)
}

func TestPoseClient_NoLandmarks(t *testing.T) {
	c := newPoseServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"landmarks":[]}`))
	})

	res, err := c.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.False(t, res.Detected)
}

func TestPoseClient_ServerError(t *testing.T) {
	c := newPoseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	res, err := c.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
	assert.False(t, res.Detected)
}

func TestPoseClient_Health(t *testing.T) {
	c := newPoseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.NoError(t, c.Health(context.Background()))
}

func TestPoseOptions_Validate(t *testing.T) {
	opts := PoseOptions{URL: "http://pose:8000", ModelComplexity: 3}
	opts.SetDefaults()
	assert.Error(t, opts.Validate())

	opts.ModelComplexity = 2
	assert.NoError(t, opts.Validate())
	assert.Equal(t, 90, opts.JPEGQuality)
	assert.Equal(t, 30.0, opts.TimeoutSec)
}
