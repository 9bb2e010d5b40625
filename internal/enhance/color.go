package enhance

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	saturationFactor = 1.2
	contrastFactor   = 1.1
)

// AdjustColor boosts saturation by 1.2x, then contrast by 1.1x.
// Saturation blends each pixel away from its own luma; contrast blends away
// from the mean luma of the whole image.
func AdjustColor(img image.Image) *image.NRGBA {
	saturated := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		gray := luma(c)
		return color.NRGBA{
			R: clampByte(gray + (float64(c.R)-gray)*saturationFactor),
			G: clampByte(gray + (float64(c.G)-gray)*saturationFactor),
			B: clampByte(gray + (float64(c.B)-gray)*saturationFactor),
			A: c.A,
		}
	})

	mean := float64(int(meanLuma(saturated) + 0.5))
	return imaging.AdjustFunc(saturated, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampByte(mean + (float64(c.R)-mean)*contrastFactor),
			G: clampByte(mean + (float64(c.G)-mean)*contrastFactor),
			B: clampByte(mean + (float64(c.B)-mean)*contrastFactor),
			A: c.A,
		}
	})
}

func luma(c color.NRGBA) float64 {
	return (299*float64(c.R) + 587*float64(c.G) + 114*float64(c.B)) / 1000
}

func meanLuma(img *image.NRGBA) float64 {
	n := len(img.Pix) / 4
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+3 < len(img.Pix); i += 4 {
		sum += luma(color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2]})
	}
	return sum / float64(n)
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
