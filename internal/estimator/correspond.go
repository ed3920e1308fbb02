package estimator

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

// Correspondence pairs a detected image spot with a catalog landmark.
type Correspondence struct {
	Pixel    r2.Point
	Point    r3.Vector // body-frame landmark location
	Landmark int
	Spot     Spot
}

// matchSpots assigns spots to landmarks by photometric signature. Each
// landmark's albedo is one code of an evenly spaced book, so a ratio
// within half a step of a code identifies the landmark. Spots on
// surface too dim for the measurement to resolve adjacent codes are
// skipped here; the guided geometric pass picks them back up once an
// initial pose exists. Residual mismatches are left to the geometric
// outlier rejection downstream.
func matchSpots(spots []Spot, landmarks []scene.Landmark) []Correspondence {
	taken := make([]bool, len(landmarks))
	var out []Correspondence
	for _, sp := range spots {
		ratio := sp.Ratio()
		if ratio <= 1 {
			continue
		}
		if sp.Peak >= 0.995 {
			// clipped; the ratio no longer identifies the albedo
			continue
		}
		if ratioTolerance(sp.Background) > scene.AlbedoStep/2 {
			// cannot resolve adjacent codes at this brightness
			continue
		}
		best := -1
		var bestErr float64
		for i, lm := range landmarks {
			e := abs(ratio - lm.Albedo)
			if best < 0 || e < bestErr {
				best, bestErr = i, e
			}
		}
		if best < 0 || bestErr > scene.AlbedoStep/2 || taken[best] {
			continue
		}
		taken[best] = true
		out = append(out, Correspondence{
			Pixel:    sp.Centroid,
			Point:    landmarks[best].Point,
			Landmark: landmarks[best].ID,
			Spot:     sp,
		})
	}
	return out
}

// ratioTolerance bounds the expected signature error at the measured
// background level: a fraction of one 8-bit quantization step, since
// the spot and annulus means dither the rounding over many pixels.
func ratioTolerance(background float64) float64 {
	tol := 1.0 / (background * 255)
	if tol < 0.005 {
		tol = 0.005
	}
	return tol
}

// guidedMatches re-matches every detected spot geometrically once an
// initial pose exists: each camera-facing landmark is projected under
// the pose and a spot is assigned to the only landmark projecting
// within the pixel gate. Signature quality no longer matters, so dim
// and clipped spots rejected by matchSpots contribute here.
func guidedMatches(spots []Spot, landmarks []scene.Landmark, pose spatial.Pose, cam scene.Camera, gatePx float64) []Correspondence {
	camInBody := pose.Invert().Position
	type projected struct {
		pixel r2.Point
		index int
	}
	var proj []projected
	for i, lm := range landmarks {
		if lm.Normal.Dot(camInBody.Sub(lm.Point).Normalize()) < 0.1 {
			continue
		}
		px, ok := cam.Project(pose.Transform(lm.Point))
		if !ok || !cam.InFrame(px) {
			continue
		}
		proj = append(proj, projected{pixel: px, index: i})
	}

	taken := make(map[int]bool, len(proj))
	var out []Correspondence
	for _, sp := range spots {
		best, second := -1, math.Inf(1)
		bestDist := math.Inf(1)
		for _, p := range proj {
			d := math.Hypot(p.pixel.X-sp.Centroid.X, p.pixel.Y-sp.Centroid.Y)
			if d < bestDist {
				second = bestDist
				best, bestDist = p.index, d
			} else if d < second {
				second = d
			}
		}
		if best < 0 || bestDist > gatePx || second <= gatePx || taken[best] {
			continue
		}
		taken[best] = true
		out = append(out, Correspondence{
			Pixel:    sp.Centroid,
			Point:    landmarks[best].Point,
			Landmark: landmarks[best].ID,
			Spot:     sp,
		})
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
