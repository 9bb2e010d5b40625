package pipeline

import (
	"FrameForge/internal/detector"
	"image"
	"math"
)

// DefaultPadding is the fraction of frame width/height added on each side of
// the landmark bounding box.
const DefaultPadding = 0.2

// CropRegion is a pixel rectangle with 0 <= XMin < XMax <= W and
// 0 <= YMin < YMax <= H.
type CropRegion struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

func (c CropRegion) Rect() image.Rectangle {
	return image.Rect(c.XMin, c.YMin, c.XMax, c.YMax)
}

// ComputeCropRegion returns the padded bounding box of all landmarks clamped
// to a w x h frame. The second result is false when the clamped region has
// no area, in which case the frame is skipped.
func ComputeCropRegion(landmarks []detector.Landmark, w, h int, padding float64) (CropRegion, bool) {
	if len(landmarks) == 0 || w <= 0 || h <= 0 {
		return CropRegion{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, lm := range landmarks {
		x := lm.X * float64(w)
		y := lm.Y * float64(h)
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}

	padX := padding * float64(w)
	padY := padding * float64(h)

	region := CropRegion{
		XMin: max(0, truncate(minX-padX)),
		XMax: min(w, truncate(maxX+padX)),
		YMin: max(0, truncate(minY-padY)),
		YMax: min(h, truncate(maxY+padY)),
	}
	if region.XMax <= region.XMin || region.YMax <= region.YMin {
		return CropRegion{}, false
	}
	return region, true
}

// truncate converts toward zero, saturating far outside the int range.
func truncate(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}
