package pipeline

import (
	"FrameForge/internal/detector"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lm(x, y float64) detector.Landmark {
	return detector.Landmark{X: x, Y: y, Visibility: 1}
}

func TestComputeCropRegion(t *testing.T) {
	tests := []struct {
		name      string
		landmarks []detector.Landmark
		w, h      int
		expected  CropRegion
		ok        bool
	}{
		{
			name:      "padding clamps to full frame",
			landmarks: []detector.Landmark{lm(0.1, 0.1), lm(0.9, 0.9)},
			w:         100, h: 100,
			expected: CropRegion{XMin: 0, YMin: 0, XMax: 100, YMax: 100},
			ok:       true,
		},
		{
			name:      "centered subject",
			landmarks: []detector.Landmark{lm(0.4, 0.3), lm(0.6, 0.7), lm(0.5, 0.5)},
			w:         200, h: 100,
			expected: CropRegion{XMin: 40, YMin: 10, XMax: 160, YMax: 90},
			ok:       true,
		},
		{
			name:      "fractional bounds truncate",
			landmarks: []detector.Landmark{lm(0.333, 0.5)},
			w:         10, h: 10,
			expected: CropRegion{XMin: 1, YMin: 3, XMax: 5, YMax: 7},
			ok:       true,
		},
		{
			name:      "landmarks outside frame collapse",
			landmarks: []detector.Landmark{lm(1.5, 1.5), lm(1.6, 1.7)},
			w:         100, h: 100,
			ok:        false,
		},
		{
			name: "no landmarks",
			w:    100, h: 100,
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, ok := ComputeCropRegion(tt.landmarks, tt.w, tt.h, DefaultPadding)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.expected, region)
			assert.True(t, region.XMin >= 0 && region.XMin < region.XMax && region.XMax <= tt.w)
			assert.True(t, region.YMin >= 0 && region.YMin < region.YMax && region.YMax <= tt.h)
		})
	}
}
