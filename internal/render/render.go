// Package render produces synthetic grayscale observations of a scene:
// a software ray cast of the target ellipsoid with diffuse shading,
// optional shadow test and specular term, landmark albedo spots, and
// seeded sensor noise.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"

	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

// ErrRender indicates renderer misuse (nil scene, unset pose, zero
// resolution). A target outside the frustum is not an error: the result
// is simply an image with no target pixels.
var ErrRender = errors.New("render error")

// Options controls one rendering pass.
type Options struct {
	Width  int
	Height int

	// Lambertian selects pure diffuse shading; when false a Phong-style
	// specular term is added.
	Lambertian bool

	// Shadows enables a sun-occlusion test per surface hit.
	Shadows bool

	// Depth retains the per-pixel range to the surface.
	Depth bool

	// NoiseSigma is the per-pixel Gaussian sensor noise in intensity
	// units (0..1 scale). Zero disables noise.
	NoiseSigma float64

	// SurfaceGain scales the diffuse surface brightness. The default
	// keeps gain * max catalog albedo below full scale so no landmark
	// spot ever clips.
	SurfaceGain float64

	// SpotRadius is the painted landmark spot radius in pixels.
	SpotRadius float64
}

// DefaultOptions returns the options used by batch runs unless the
// configuration overrides them.
func DefaultOptions(width, height int) Options {
	return Options{
		Width:       width,
		Height:      height,
		Lambertian:  true,
		Shadows:     true,
		Depth:       false,
		SurfaceGain: 0.26,
		SpotRadius:  2.5,
	}
}

// Image is a grayscale pixel buffer with an optional depth channel.
type Image struct {
	Width  int
	Height int
	Pix    []uint8   // row-major, 0..255
	Depth  []float64 // row-major range to surface; nil unless requested
}

// At returns the intensity at (x, y) on a 0..1 scale.
func (im *Image) At(x, y int) float64 {
	return float64(im.Pix[y*im.Width+x]) / 255
}

// TargetPixelCount returns the number of non-zero pixels.
func (im *Image) TargetPixelCount() int {
	n := 0
	for _, p := range im.Pix {
		if p > 0 {
			n++
		}
	}
	return n
}

// Renderer rasterizes scenes. Instances are not safe for concurrent
// use; batch workers each own one, created once and reused across that
// worker's trials.
type Renderer struct {
	opts Options
}

// New returns a renderer with fixed options.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: resolution %dx%d", ErrRender, opts.Width, opts.Height)
	}
	if opts.SurfaceGain <= 0 {
		opts.SurfaceGain = 0.26
	}
	if opts.SpotRadius <= 0 {
		opts.SpotRadius = 2.5
	}
	return &Renderer{opts: opts}, nil
}

// Options returns the renderer's fixed options.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render rasterizes the scene's current pose. The supplied rng drives
// noise injection only; given identical scene state and an identically
// seeded rng the output is bit-identical. The context is checked
// between scanlines so a hung batch trial can be abandoned.
func (r *Renderer) Render(ctx context.Context, sc *scene.Scene, rng *rand.Rand) (*Image, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: nil scene", ErrRender)
	}
	pose, ok := sc.Pose()
	if !ok {
		return nil, fmt.Errorf("%w: scene pose not set", ErrRender)
	}

	w, h := r.opts.Width, r.opts.Height
	im := &Image{Width: w, Height: h, Pix: make([]uint8, w*h)}
	if r.opts.Depth {
		im.Depth = make([]float64, w*h)
	}
	shade := make([]float64, w*h)

	inv := pose.Invert()
	camInBody := inv.Position
	cam := sc.Camera
	// scale camera resolution to the render resolution
	sx := float64(cam.Width) / float64(w)
	sy := float64(cam.Height) / float64(h)

	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			dirCam := cam.Ray((float64(x)+0.5)*sx, (float64(y)+0.5)*sy)
			dirBody := spatial.Rotate(inv.Orientation, dirCam)
			tHit, hit := intersectEllipsoid(camInBody, dirBody, sc.Target.SemiAxes)
			if !hit {
				continue
			}
			p := camInBody.Add(dirBody.Mul(tHit))
			n := sc.Target.SurfaceNormal(p)
			lambert := n.Dot(sc.Sun)
			if lambert <= 0 {
				continue
			}
			if r.opts.Shadows && sunOccluded(p, n, sc.Sun, sc.Target.SemiAxes) {
				continue
			}
			v := r.opts.SurfaceGain * lambert
			if !r.opts.Lambertian {
				v += specular(n, sc.Sun, dirBody)
			}
			shade[y*w+x] = v
			if im.Depth != nil {
				im.Depth[y*w+x] = tHit
			}
		}
	}

	paintLandmarkSpots(sc, shade, w, h, sx, sy, r.opts)

	for i, v := range shade {
		if r.opts.NoiseSigma > 0 {
			v += rng.NormFloat64() * r.opts.NoiseSigma
		}
		im.Pix[i] = quantize(v)
	}
	return im, nil
}

// intersectEllipsoid solves the ray/ellipsoid quadratic in the unit
// sphere's coordinates. Returns the nearest positive hit distance.
func intersectEllipsoid(origin, dir, semi r3.Vector) (float64, bool) {
	o := r3.Vector{X: origin.X / semi.X, Y: origin.Y / semi.Y, Z: origin.Z / semi.Z}
	d := r3.Vector{X: dir.X / semi.X, Y: dir.Y / semi.Y, Z: dir.Z / semi.Z}
	a := d.Dot(d)
	b := 2 * o.Dot(d)
	c := o.Dot(o) - 1
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t0 := (-b - sq) / (2 * a)
	if t0 > 1e-9 {
		return t0, true
	}
	t1 := (-b + sq) / (2 * a)
	if t1 > 1e-9 {
		return t1, true
	}
	return 0, false
}

// sunOccluded casts a ray from just above the surface point toward the
// sun and reports whether it re-enters the body.
func sunOccluded(p, n, sun, semi r3.Vector) bool {
	origin := p.Add(n.Mul(1e-6 * semi.Norm()))
	_, hit := intersectEllipsoid(origin, sun, semi)
	return hit
}

// specular adds a narrow Phong lobe for view-dependent shading.
func specular(n, sun, viewDir r3.Vector) float64 {
	half := sun.Sub(viewDir).Normalize()
	s := n.Dot(half)
	if s <= 0 {
		return 0
	}
	return 0.25 * math.Pow(s, 24)
}

func paintLandmarkSpots(sc *scene.Scene, shade []float64, w, h int, sx, sy float64, opts Options) {
	rad := opts.SpotRadius
	for _, lm := range sc.VisibleLandmarks() {
		u := lm.Pixel.X / sx
		v := lm.Pixel.Y / sy
		x0 := int(math.Floor(u - rad))
		x1 := int(math.Ceil(u + rad))
		y0 := int(math.Floor(v - rad))
		y1 := int(math.Ceil(v + rad))
		for y := y0; y <= y1; y++ {
			if y < 0 || y >= h {
				continue
			}
			for x := x0; x <= x1; x++ {
				if x < 0 || x >= w {
					continue
				}
				dx := float64(x) + 0.5 - u
				dy := float64(y) + 0.5 - v
				if dx*dx+dy*dy > rad*rad {
					continue
				}
				idx := y*w + x
				if shade[idx] <= 0 {
					// spot must sit on the rendered surface
					continue
				}
				// modulate the local shading so the spot-to-background
				// intensity ratio equals the albedo at every pixel
				shade[idx] *= lm.Albedo
			}
		}
	}
}

func quantize(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
