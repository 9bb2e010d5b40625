package detector

import (
	"context"
	"image"

	"go.uber.org/zap"
)

// Verdict is the gated outcome for one frame.
type Verdict struct {
	Result     Result
	Accepted   bool
	Confidence float64
	Err        error
}

// Gate applies the confidence policy: a frame is accepted only when a
// detection exists and the first landmark's visibility is strictly above the
// threshold. Backend errors are reported on the Verdict and count as
// NoDetection.
type Gate struct {
	detector  Detector
	threshold float64
	logger    *zap.Logger
}

func NewGate(detector Detector, threshold float64, logger *zap.Logger) *Gate {
	return &Gate{detector: detector, threshold: threshold, logger: logger}
}

func (g *Gate) Evaluate(ctx context.Context, img image.Image) Verdict {
	res, err := g.detector.Detect(ctx, img)
	if err != nil {
		g.logger.Warn("Detector failed on frame", zap.String("backend", g.detector.Name()), zap.Error(err))
		return Verdict{Result: NoDetection, Err: err}
	}
	if !res.Detected || len(res.Landmarks) == 0 {
		return Verdict{Result: NoDetection}
	}
	conf := res.Landmarks[0].Visibility
	return Verdict{
		Result:     res,
		Accepted:   conf > g.threshold,
		Confidence: conf,
	}
}
