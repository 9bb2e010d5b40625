package enhance

import (
	"image"

	"github.com/disintegration/imaging"
)

const unsharpSigma = 3.0

// UnsharpMask computes 1.5*img - 0.5*blur(img, sigma=3).
func UnsharpMask(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	blur := imaging.Blur(src, unsharpSigma)

	out := image.NewNRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			out.Pix[i+c] = clampByte(1.5*float64(src.Pix[i+c]) - 0.5*float64(blur.Pix[i+c]))
		}
		out.Pix[i+3] = src.Pix[i+3]
	}
	return out
}
