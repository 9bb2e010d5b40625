package enhance

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 96,
				A: 255,
			})
		}
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

type stubLocator struct {
	rects []image.Rectangle
}

func (s stubLocator) Locate(*image.NRGBA) []image.Rectangle { return s.rects }

type panicLocator struct{}

func (panicLocator) Locate(*image.NRGBA) []image.Rectangle { panic("cascade exploded") }

func TestPipeline_ApplyEmptyIsIdentity(t *testing.T) {
	p := NewPipeline(zap.NewNop(), nil, 0)
	src := gradient(16, 12)

	res := p.Apply(src, nil)
	require.NoError(t, res.Err)
	assert.Equal(t, src.Pix, res.Image.Pix)
	assert.Equal(t, src.Bounds(), res.Image.Bounds())
}

func TestPipeline_ApplyPreservesDimensions(t *testing.T) {
	p := NewPipeline(zap.NewNop(), nil, 0)
	src := gradient(24, 18)

	for _, m := range []Method{Color, Denoise, Sharpen, Face, SuperRes, HDR} {
		t.Run(m.String(), func(t *testing.T) {
			res := p.Apply(src, []Method{m})
			require.NoError(t, res.Err)
			assert.Equal(t, src.Bounds(), res.Image.Bounds())
		})
	}
}

func TestPipeline_FaceWithoutFacesIsNoop(t *testing.T) {
	p := NewPipeline(zap.NewNop(), stubLocator{}, 0)
	src := gradient(20, 20)

	res := p.Apply(src, []Method{Face})
	require.NoError(t, res.Err)
	assert.Equal(t, src.Pix, res.Image.Pix)
}

func TestPipeline_FaceOnlyTouchesRegion(t *testing.T) {
	p := NewPipeline(zap.NewNop(), stubLocator{rects: []image.Rectangle{image.Rect(4, 4, 12, 12)}}, 0)
	src := gradient(20, 20)

	res := p.Apply(src, []Method{Face})
	require.NoError(t, res.Err)
	for _, pt := range []image.Point{{0, 0}, {19, 19}, {15, 2}, {2, 15}} {
		assert.Equal(t, src.NRGBAAt(pt.X, pt.Y), res.Image.NRGBAAt(pt.X, pt.Y), "pixel %v outside face changed", pt)
	}
}

func TestPipeline_PanicBecomesError(t *testing.T) {
	p := NewPipeline(zap.NewNop(), panicLocator{}, 0)

	res := p.Apply(gradient(8, 8), []Method{Color, Face})
	assert.Error(t, res.Err)
	assert.Nil(t, res.Image)
}

func TestPipeline_UnknownMethodIsError(t *testing.T) {
	p := NewPipeline(zap.NewNop(), nil, 0)
	res := p.Apply(gradient(8, 8), []Method{Method(99)})
	assert.Error(t, res.Err)
}

func TestPipeline_FinalizeDoublesSize(t *testing.T) {
	p := NewPipeline(zap.NewNop(), nil, 0)
	out := p.Finalize(gradient(30, 10))
	assert.Equal(t, image.Rect(0, 0, 60, 20), out.Bounds())
}

func TestPipeline_FinalizeKeepsFlatImagesFlat(t *testing.T) {
	p := NewPipeline(zap.NewNop(), nil, 0)
	c := color.NRGBA{R: 100, G: 150, B: 200, A: 255}
	out := p.Finalize(solid(8, 8, c))
	// the sharpening kernel sums to 1, so a flat field is unchanged
	assert.Equal(t, c, out.NRGBAAt(7, 7))
}

func TestPipeline_EncodeJPEG(t *testing.T) {
	p := NewPipeline(zap.NewNop(), nil, 0)
	data, err := p.Encode(gradient(10, 10))
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), decoded.Bounds())
}
