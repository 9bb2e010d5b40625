package enhance

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	nlmStrength       = 10.0
	nlmTemplateRadius = 3  // 7x7 patch
	nlmSearchRadius   = 10 // 21x21 window
)

// DenoiseNLM applies non-local means denoising to a color image.
func DenoiseNLM(img image.Image) *image.NRGBA {
	return nlMeans(imaging.Clone(img), nlmStrength, nlmTemplateRadius, nlmSearchRadius)
}

// nlMeans weights every pixel in the search window by the similarity of the
// patch around it to the patch around the target pixel. Patch distances are
// computed per offset with a summed-area table so each pixel costs O(1) per
// offset regardless of patch size.
func nlMeans(src *image.NRGBA, h float64, templateRadius, searchRadius int) *image.NRGBA {
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	out := image.NewNRGBA(b)
	if w == 0 || ht == 0 {
		return out
	}

	n := w * ht
	diff := make([]float64, n)
	sat := make([]float64, (w+1)*(ht+1))
	acc := make([]float64, n*3)
	wsum := make([]float64, n)
	invH2 := 1 / (h * h)

	at := func(x, y int) int {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), ht-1)
		return y*src.Stride + x*4
	}

	for dy := -searchRadius; dy <= searchRadius; dy++ {
		for dx := -searchRadius; dx <= searchRadius; dx++ {
			for y := 0; y < ht; y++ {
				for x := 0; x < w; x++ {
					p, q := at(x, y), at(x+dx, y+dy)
					var d float64
					for c := 0; c < 3; c++ {
						v := float64(src.Pix[p+c]) - float64(src.Pix[q+c])
						d += v * v
					}
					diff[y*w+x] = d / 3
				}
			}

			for y := 0; y < ht; y++ {
				var row float64
				for x := 0; x < w; x++ {
					row += diff[y*w+x]
					sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
				}
			}

			for y := 0; y < ht; y++ {
				y0, y1 := max(y-templateRadius, 0), min(y+templateRadius, ht-1)+1
				for x := 0; x < w; x++ {
					x0, x1 := max(x-templateRadius, 0), min(x+templateRadius, w-1)+1
					sum := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
					dist := sum / float64((y1-y0)*(x1-x0))
					weight := math.Exp(-dist * invH2)

					i := y*w + x
					q := at(x+dx, y+dy)
					acc[i*3] += weight * float64(src.Pix[q])
					acc[i*3+1] += weight * float64(src.Pix[q+1])
					acc[i*3+2] += weight * float64(src.Pix[q+2])
					wsum[i] += weight
				}
			}
		}
	}

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			o := y*out.Stride + x*4
			for c := 0; c < 3; c++ {
				out.Pix[o+c] = clampByte(acc[i*3+c] / wsum[i])
			}
			out.Pix[o+3] = src.Pix[at(x, y)+3]
		}
	}
	return out
}
