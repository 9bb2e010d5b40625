package enhance

import (
	"image"
	"math"
)

// bilateral filters a set of equally sized float planes jointly. The range
// weight uses the L1 color distance summed over all planes, matching the
// usual multi-channel bilateral filter. Taps are restricted to a disc of the
// given diameter.
func bilateral(planes [][]float64, w, h, diameter int, sigmaColor, sigmaSpace float64) [][]float64 {
	radius := diameter / 2
	type tap struct {
		dx, dy int
		weight float64
	}
	var taps []tap
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(-r2 / (2 * sigmaSpace * sigmaSpace))})
		}
	}
	colorCoeff := -1 / (2 * sigmaColor * sigmaColor)

	out := make([][]float64, len(planes))
	for c := range planes {
		out[c] = make([]float64, w*h)
	}

	sums := make([]float64, len(planes))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := y*w + x
			for c := range sums {
				sums[c] = 0
			}
			var wsum float64
			for _, t := range taps {
				nx := min(max(x+t.dx, 0), w-1)
				ny := min(max(y+t.dy, 0), h-1)
				j := ny*w + nx

				var dist float64
				for _, p := range planes {
					dist += math.Abs(p[j] - p[center])
				}
				weight := t.weight * math.Exp(dist*dist*colorCoeff)
				for c, p := range planes {
					sums[c] += weight * p[j]
				}
				wsum += weight
			}
			for c := range planes {
				out[c][center] = sums[c] / wsum
			}
		}
	}
	return out
}

// bilateralRGB runs the bilateral filter over the color channels of img.
func bilateralRGB(img *image.NRGBA, diameter int, sigmaColor, sigmaSpace float64) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	planes := make([][]float64, 3)
	for c := range planes {
		planes[c] = make([]float64, w*h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*img.Stride + x*4
			for c := 0; c < 3; c++ {
				planes[c][y*w+x] = float64(img.Pix[o+c])
			}
		}
	}

	filtered := bilateral(planes, w, h, diameter, sigmaColor, sigmaSpace)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*img.Stride + x*4
			d := y*out.Stride + x*4
			for c := 0; c < 3; c++ {
				out.Pix[d+c] = clampByte(filtered[c][y*w+x])
			}
			out.Pix[d+3] = img.Pix[o+3]
		}
	}
	return out
}
