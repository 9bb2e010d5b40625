package enhance

import (
	"image"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	hdrDiameter   = 9
	hdrSigmaColor = 0.1
	hdrSigmaSpace = 7.0
	hdrBaseGain   = 1.2
)

// ToneMapHDR splits CIE L* into an edge-preserving base and a detail layer,
// stretches the base around mid-grey, and recombines it with the detail and
// the original a*, b* channels.
func ToneMapHDR(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	lum := make([]float64, w*h)
	as := make([]float64, w*h)
	bs := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*src.Stride + x*4
			c := colorful.Color{
				R: float64(src.Pix[o]) / 255,
				G: float64(src.Pix[o+1]) / 255,
				B: float64(src.Pix[o+2]) / 255,
			}
			i := y*w + x
			lum[i], as[i], bs[i] = c.Lab()
		}
	}

	base := bilateral([][]float64{lum}, w, h, hdrDiameter, hdrSigmaColor, hdrSigmaSpace)[0]

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			detail := lum[i] - base[i]
			stretched := clamp01((base[i]-0.5)*hdrBaseGain + 0.5)
			r, g, bl := colorful.Lab(stretched+detail, as[i], bs[i]).Clamped().RGB255()

			o := y*out.Stride + x*4
			out.Pix[o] = r
			out.Pix[o+1] = g
			out.Pix[o+2] = bl
			out.Pix[o+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
