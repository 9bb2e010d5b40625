package enhance

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustColor_GreyStaysGrey(t *testing.T) {
	grey := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	out := AdjustColor(solid(4, 4, grey))
	assert.Equal(t, grey, out.NRGBAAt(1, 1))
}

func TestAdjustColor_IncreasesSaturation(t *testing.T) {
	c := color.NRGBA{R: 180, G: 100, B: 100, A: 255}
	out := AdjustColor(solid(4, 4, c)).NRGBAAt(0, 0)
	assert.Greater(t, int(out.R)-int(out.G), int(c.R)-int(c.G))
}

func TestUnsharpMask_FlatUnchanged(t *testing.T) {
	c := color.NRGBA{R: 10, G: 200, B: 90, A: 255}
	out := UnsharpMask(solid(12, 12, c))
	assert.Equal(t, c, out.NRGBAAt(6, 6))
}

func TestDenoiseNLM_FlatUnchanged(t *testing.T) {
	c := color.NRGBA{R: 60, G: 70, B: 80, A: 255}
	out := DenoiseNLM(solid(10, 10, c))
	assert.Equal(t, c, out.NRGBAAt(5, 5))
}

func TestDenoiseNLM_SmoothsOutlier(t *testing.T) {
	img := solid(15, 15, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(7, 7, color.NRGBA{R: 112, G: 100, B: 100, A: 255})

	out := DenoiseNLM(img)
	assert.Less(t, int(out.NRGBAAt(7, 7).R), 112)
}

// halves paints the left half of a w x h image with left and the rest with right.
func halves(w, h int, left, right color.NRGBA) *image.NRGBA {
	img := solid(w, h, right)
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.SetNRGBA(x, y, left)
		}
	}
	return img
}

func grey(v uint8) color.NRGBA {
	return color.NRGBA{R: v, G: v, B: v, A: 255}
}

func TestAdjustColor_StretchesContrastAroundMeanLuma(t *testing.T) {
	// Greys are untouched by saturation; mean luma is 130.
	out := AdjustColor(halves(8, 4, grey(100), grey(160)))
	assert.Equal(t, grey(97), out.NRGBAAt(1, 1))
	assert.Equal(t, grey(163), out.NRGBAAt(6, 1))
}

func TestUnsharpMask_OvershootsAtEdge(t *testing.T) {
	out := UnsharpMask(halves(24, 8, grey(50), grey(200)))

	dark, bright := out.NRGBAAt(11, 4), out.NRGBAAt(12, 4)
	assert.Less(t, int(dark.R), 50)
	assert.Greater(t, int(bright.R), 200)
	assert.Greater(t, int(bright.R)-int(dark.R), 150)
	assert.Equal(t, dark.R, dark.G)
	assert.Equal(t, uint8(255), dark.A)
}

func TestToneMapHDR_StretchesAroundMidpoint(t *testing.T) {
	tests := []struct {
		name   string
		in     uint8
		darker bool
	}{
		{"shadow gets darker", 60, true},
		{"highlight gets lighter", 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px := ToneMapHDR(solid(12, 12, grey(tt.in))).NRGBAAt(6, 6)
			if tt.darker {
				assert.Less(t, int(px.R), int(tt.in)-5)
			} else {
				assert.Greater(t, int(px.R), int(tt.in)+5)
			}
			// a* and b* are kept, so grey stays neutral.
			assert.InDelta(t, int(px.R), int(px.G), 1)
			assert.InDelta(t, int(px.G), int(px.B), 1)
			assert.Equal(t, uint8(255), px.A)
		})
	}
}

func TestToneMapHDR_PreservesSizeAndAlpha(t *testing.T) {
	in := gradient(16, 16)
	in.SetNRGBA(3, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	out := ToneMapHDR(in)
	assert.Equal(t, in.Bounds(), out.Bounds())
	assert.Equal(t, uint8(128), out.NRGBAAt(3, 3).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(4, 4).A)
}

func TestSuperResolve_FlatUnchanged(t *testing.T) {
	c := color.NRGBA{R: 33, G: 66, B: 99, A: 255}
	out := SuperResolve(solid(9, 7, c))
	assert.Equal(t, 9, out.Bounds().Dx())
	assert.Equal(t, 7, out.Bounds().Dy())
	assert.Equal(t, c, out.NRGBAAt(4, 3))
}
