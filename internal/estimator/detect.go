package estimator

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/astroviz/navbench/internal/render"
)

// Spot is one detected bright feature: a connected blob brighter than
// the surrounding surface, with its intensity-weighted centroid and the
// spot-to-background intensity ratio used as the correspondence
// signature.
type Spot struct {
	Centroid   r2.Point
	Peak       float64
	Mean       float64
	Background float64
	Area       int
}

// Ratio is the spot's photometric signature: mean spot intensity over
// the local background. Means over the blob and the surrounding annulus
// average the 8-bit quantization down wherever the shading varies, so
// the ratio resolves the albedo code book far below the single-pixel
// quantization step.
func (s Spot) Ratio() float64 {
	if s.Background <= 0 {
		return 0
	}
	return s.Mean / s.Background
}

const (
	// spotContrast is the minimum peak-to-background factor for a pixel
	// to count as part of a spot.
	spotContrast = 1.15

	// minBackground rejects spots on surface too dim for the ratio
	// signature to survive quantization.
	minBackground = 0.07

	annulusInner = 4
	annulusOuter = 7
)

// DetectSpots extracts bright features from a rendered frame. The
// centroid is reported in the camera's native pixel coordinates even
// when the frame was rendered at a reduced resolution.
func DetectSpots(im *render.Image, camWidth, camHeight int) []Spot {
	w, h := im.Width, im.Height
	mask := make([]bool, w*h)
	bg := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := im.At(x, y)
			if v <= 0 {
				continue
			}
			b := ringBackground(im, x, y)
			if b < minBackground {
				continue
			}
			if v >= spotContrast*b {
				mask[y*w+x] = true
				bg[y*w+x] = b
			}
		}
	}

	spots := components(im, mask, bg)
	sx := float64(camWidth) / float64(w)
	sy := float64(camHeight) / float64(h)
	for i := range spots {
		spots[i].Centroid.X *= sx
		spots[i].Centroid.Y *= sy
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].Peak > spots[j].Peak })
	return spots
}

// ringBackground estimates the local surface brightness from the
// interquartile mean of lit pixels in an annulus wide enough to clear a
// spot. The trimming sheds pixels belonging to neighboring spots or the
// limb; the mean over the surviving pixels dithers the quantization.
func ringBackground(im *render.Image, cx, cy int) float64 {
	var ring []float64
	for dy := -annulusOuter; dy <= annulusOuter; dy++ {
		y := cy + dy
		if y < 0 || y >= im.Height {
			continue
		}
		for dx := -annulusOuter; dx <= annulusOuter; dx++ {
			x := cx + dx
			if x < 0 || x >= im.Width {
				continue
			}
			d2 := dx*dx + dy*dy
			if d2 < annulusInner*annulusInner || d2 > annulusOuter*annulusOuter {
				continue
			}
			if v := im.At(x, y); v > 0 {
				ring = append(ring, v)
			}
		}
	}
	if len(ring) < 8 {
		return 0
	}
	sort.Float64s(ring)
	lo, hi := len(ring)/4, 3*len(ring)/4
	sum := 0.0
	for _, v := range ring[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}

// components groups masked pixels by 8-connectivity and reduces each
// blob to a Spot. Single-pixel blobs are noise and dropped.
func components(im *render.Image, mask []bool, bg []float64) []Spot {
	w, h := im.Width, im.Height
	seen := make([]bool, w*h)
	var spots []Spot
	var stack []int

	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		stack = append(stack[:0], start)
		seen[start] = true
		var sumW, sumX, sumY, peak, valSum, bgSum float64
		area := 0
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w
			v := im.At(x, y)
			wgt := v - bg[idx]
			if wgt < 0 {
				wgt = 0
			}
			sumW += wgt
			sumX += wgt * (float64(x) + 0.5)
			sumY += wgt * (float64(y) + 0.5)
			peak = math.Max(peak, v)
			valSum += v
			bgSum += bg[idx]
			area++
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					n := ny*w + nx
					if mask[n] && !seen[n] {
						seen[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
		if area < 2 || sumW <= 0 {
			continue
		}
		spots = append(spots, Spot{
			Centroid:   r2.Point{X: sumX / sumW, Y: sumY / sumW},
			Peak:       peak,
			Mean:       valSum / float64(area),
			Background: bgSum / float64(area),
			Area:       area,
		})
	}
	return spots
}
