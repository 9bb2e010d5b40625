package enhance

import (
	"image"

	"github.com/disintegration/imaging"
)

// SuperResolve upscales 2x with bicubic interpolation and resamples back to
// the original size with area averaging. Dimensions are preserved.
func SuperResolve(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	up := imaging.Resize(img, w*2, h*2, imaging.CatmullRom)
	return imaging.Resize(up, w, h, imaging.Box)
}
