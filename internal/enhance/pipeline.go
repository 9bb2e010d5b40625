package enhance

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const DefaultJPEGQuality = 95

// sharpenKernel is applied after the final 2x upscale.
var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Result is the outcome of enhancing one image. When Err is set the image
// must be dropped; other images are unaffected.
type Result struct {
	Image *image.NRGBA
	Err   error
}

type Pipeline struct {
	logger  *zap.Logger
	faces   FaceLocator
	quality int
}

func NewPipeline(logger *zap.Logger, faces FaceLocator, quality int) *Pipeline {
	if faces == nil {
		faces = noFaces{}
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Pipeline{logger: logger, faces: faces, quality: quality}
}

// Apply runs the methods in order. An empty list returns the input unchanged.
// A failure or panic in any transform is reported on the Result.
func (p *Pipeline) Apply(img image.Image, methods []Method) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Enhancement panicked", zap.Any("panic", r))
			res = Result{Err: fmt.Errorf("enhancement panicked: %v", r)}
		}
	}()

	out := imaging.Clone(img)
	for _, m := range methods {
		next, err := p.apply(out, m)
		if err != nil {
			return Result{Err: fmt.Errorf("%s: %w", m, err)}
		}
		out = next
	}
	return Result{Image: out}
}

func (p *Pipeline) apply(img *image.NRGBA, m Method) (*image.NRGBA, error) {
	switch m {
	case Color:
		return AdjustColor(img), nil
	case Denoise:
		return DenoiseNLM(img), nil
	case Sharpen:
		return UnsharpMask(img), nil
	case Face:
		return EnhanceFaces(img, p.faces)
	case SuperRes:
		return SuperResolve(img), nil
	case HDR:
		return ToneMapHDR(img), nil
	default:
		return nil, fmt.Errorf("unsupported method %d", int(m))
	}
}

// Finalize doubles the resolution with Lanczos resampling and applies a 3x3
// sharpening kernel. It runs on every extracted image regardless of methods.
func (p *Pipeline) Finalize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	up := imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Lanczos)
	return imaging.Convolve3x3(up, sharpenKernel, nil)
}

func (p *Pipeline) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
