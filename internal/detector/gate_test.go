package detector

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Name() string { return "mock" }

func (m *mockDetector) Detect(ctx context.Context, img image.Image) (Result, error) {
	args := m.Called(ctx, img)
	return args.Get(0).(Result), args.Error(1)
}

func detectionWith(visibility float64) Result {
	return Result{Detected: true, Landmarks: []Landmark{{X: 0.5, Y: 0.5, Visibility: visibility}}}
}

func TestGate_Evaluate(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	tests := []struct {
		name       string
		result     Result
		err        error
		accepted   bool
		confidence float64
		hasErr     bool
	}{
		{name: "above threshold", result: detectionWith(0.9), accepted: true, confidence: 0.9},
		{name: "equal to threshold is rejected", result: detectionWith(0.5), accepted: false, confidence: 0.5},
		{name: "below threshold", result: detectionWith(0.2), accepted: false, confidence: 0.2},
		{name: "no detection", result: NoDetection, accepted: false},
		{name: "detected without landmarks", result: Result{Detected: true}, accepted: false},
		{name: "backend error", result: NoDetection, err: errors.New("boom"), accepted: false, hasErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDetector{}
			d.On("Detect", mock.Anything, mock.Anything).Return(tt.result, tt.err)

			v := NewGate(d, 0.5, zap.NewNop()).Evaluate(context.Background(), img)

			assert.Equal(t, tt.accepted, v.Accepted)
			assert.InDelta(t, tt.confidence, v.Confidence, 1e-9)
			if tt.hasErr {
				assert.Error(t, v.Err)
				assert.False(t, v.Result.Detected)
			} else {
				assert.NoError(t, v.Err)
			}
			d.AssertExpectations(t)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{PoseLandmarkBackend}, r.List())

	err := r.Register(PoseLandmarkBackend, NewPoseClientFromOptions)
	assert.Error(t, err)

	err = r.Register("", NewPoseClientFromOptions)
	assert.Error(t, err)

	stub := &mockDetector{}
	err = r.Register("stub", func(map[string]interface{}, *zap.Logger) (Detector, error) { return stub, nil })
	assert.NoError(t, err)

	d, err := r.New("stub", nil, zap.NewNop())
	assert.NoError(t, err)
	assert.Same(t, stub, d)

	_, err = r.New("unknown", nil, zap.NewNop())
	assert.Error(t, err)

	_, err = r.New(PoseLandmarkBackend, map[string]interface{}{}, zap.NewNop())
	assert.Error(t, err, "url is required")
}
