package scene

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
)

// Landmark is a surface feature of the target body with a known
// body-frame location and a distinct albedo signature. The harness
// matches detected image features back to landmarks by that signature.
type Landmark struct {
	ID     int
	Point  r3.Vector // body frame, on the surface
	Normal r3.Vector // outward unit normal at Point
	Albedo float64   // brightness relative to the surrounding surface, > 1
}

// Target models the observed body as a triaxial ellipsoid carrying a
// fixed landmark map.
type Target struct {
	SemiAxes  r3.Vector // a, b, c in the same units as poses
	Landmarks []Landmark
}

// MaxRadius returns the largest semi-axis.
func (t *Target) MaxRadius() float64 {
	return math.Max(t.SemiAxes.X, math.Max(t.SemiAxes.Y, t.SemiAxes.Z))
}

// MeanRadius returns the arithmetic mean of the semi-axes, used for
// silhouette approximations.
func (t *Target) MeanRadius() float64 {
	return (t.SemiAxes.X + t.SemiAxes.Y + t.SemiAxes.Z) / 3
}

// SurfaceNormal returns the outward unit normal of the ellipsoid at a
// surface point p in the body frame.
func (t *Target) SurfaceNormal(p r3.Vector) r3.Vector {
	n := r3.Vector{
		X: p.X / (t.SemiAxes.X * t.SemiAxes.X),
		Y: p.Y / (t.SemiAxes.Y * t.SemiAxes.Y),
		Z: p.Z / (t.SemiAxes.Z * t.SemiAxes.Z),
	}
	return n.Normalize()
}

// Landmark albedos form an evenly spaced code book starting at
// AlbedoBase. The step must exceed twice the worst ratio-measurement
// error an 8-bit frame can produce at usable surface brightness, or
// adjacent codes become indistinguishable after quantization.
const (
	AlbedoBase = 1.25
	AlbedoStep = 0.05
)

// NewTarget builds an ellipsoidal target with n landmarks placed
// deterministically from seed. Landmark albedos are evenly spaced so
// each signature is unique; placement rejects near-duplicate directions
// to keep the map well spread.
func NewTarget(semiAxes r3.Vector, n int, seed uint64) *Target {
	t := &Target{SemiAxes: semiAxes}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	minSep := math.Sqrt(4 / float64(n)) // radians, roughly even coverage
	var dirs []r3.Vector
	for len(dirs) < n {
		d := randomDirection(rng)
		ok := true
		for _, e := range dirs {
			if math.Acos(clamp(d.Dot(e), -1, 1)) < minSep {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		dirs = append(dirs, d)
	}
	for i, d := range dirs {
		p := r3.Vector{X: d.X * semiAxes.X, Y: d.Y * semiAxes.Y, Z: d.Z * semiAxes.Z}
		t.Landmarks = append(t.Landmarks, Landmark{
			ID:     i,
			Point:  p,
			Normal: t.SurfaceNormal(p),
			Albedo: AlbedoBase + AlbedoStep*float64(i),
		})
	}
	return t
}

func randomDirection(rng *rand.Rand) r3.Vector {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	s := math.Sqrt(1 - z*z)
	return r3.Vector{X: s * math.Cos(phi), Y: s * math.Sin(phi), Z: z}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
