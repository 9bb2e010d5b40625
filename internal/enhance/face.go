package enhance

import (
	types "FrameForge/pkg"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
	"go.uber.org/zap"
)

const (
	faceDiameter   = 9
	faceSigmaColor = 75.0
	faceSigmaSpace = 75.0
)

// FaceLocator finds face rectangles in an image. Zero rectangles is a valid
// answer.
type FaceLocator interface {
	Locate(img *image.NRGBA) []image.Rectangle
}

type noFaces struct{}

func (noFaces) Locate(*image.NRGBA) []image.Rectangle { return nil }

// EnhanceFaces denoises, color-corrects and bilateral-smooths each face
// region and writes it back in place. Pixels outside face regions are
// untouched; with no faces the image is returned as is.
func EnhanceFaces(img *image.NRGBA, locator FaceLocator) (*image.NRGBA, error) {
	if locator == nil {
		return img, nil
	}
	rects := locator.Locate(img)
	if len(rects) == 0 {
		return img, nil
	}

	out := imaging.Clone(img)
	for _, r := range rects {
		r = r.Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		region := imaging.Crop(out, r)
		region = DenoiseNLM(region)
		region = AdjustColor(region)
		region = bilateralRGB(region, faceDiameter, faceSigmaColor, faceSigmaSpace)
		out = imaging.Paste(out, region, r.Min)
	}
	return out, nil
}

// PigoLocator finds faces with a pigo pixel-intensity cascade. Without a
// cascade file it finds no faces.
type PigoLocator struct {
	classifier *pigo.Pigo
	cfg        types.FaceConfig
	logger     *zap.Logger
}

func NewPigoLocator(cfg types.FaceConfig, logger *zap.Logger) (*PigoLocator, error) {
	if cfg.MinSize <= 0 {
		cfg.MinSize = 20
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = 5.0
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = 0.2
	}

	l := &PigoLocator{cfg: cfg, logger: logger}
	if cfg.CascadePath == "" {
		logger.Warn("No face cascade configured; face enhancement will be a no-op")
		return l, nil
	}

	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}
	l.classifier = classifier
	logger.Info("Loaded face cascade", zap.String("path", cfg.CascadePath))
	return l, nil
}

func (l *PigoLocator) Locate(img *image.NRGBA) []image.Rectangle {
	if l.classifier == nil {
		return nil
	}
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()

	params := pigo.CascadeParams{
		MinSize:     l.cfg.MinSize,
		MaxSize:     min(l.cfg.MaxSize, max(cols, rows)),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, l.cfg.IoUThreshold)

	var rects []image.Rectangle
	for _, d := range dets {
		if float64(d.Q) < l.cfg.MinQuality {
			continue
		}
		half := d.Scale / 2
		rects = append(rects, image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half).Add(b.Min))
	}
	return rects
}
