package detector

import (
	"context"
	"image"
)

// Landmark is a body keypoint in normalized image coordinates. X and Y are
// in [0,1] relative to frame width and height; Visibility is the model's
// confidence that the point is visible.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Result is either a detection with an ordered landmark list or NoDetection.
type Result struct {
	Detected  bool
	Landmarks []Landmark
}

// NoDetection is the zero Result.
var NoDetection = Result{}

// Detector runs human pose detection on a single frame. Implementations are
// not safe for concurrent use unless documented otherwise.
type Detector interface {
	Name() string
	Detect(ctx context.Context, img image.Image) (Result, error)
}

// HealthChecker is implemented by backends that can report reachability
// before any frame is sent.
type HealthChecker interface {
	Health(ctx context.Context) error
}
