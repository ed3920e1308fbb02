package scene

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Camera holds pinhole intrinsics. The camera frame has +Z along the
// boresight, +X right, +Y down, matching the image coordinate
// convention (u right, v down, origin top-left).
type Camera struct {
	Width  int
	Height int
	Fx     float64 // focal length in pixels
	Fy     float64
	Cx     float64 // principal point
	Cy     float64
}

// NewCameraFromFOV derives pixel focal lengths from a horizontal field
// of view in degrees, with the principal point at the image center.
func NewCameraFromFOV(width, height int, hfovDeg float64) Camera {
	f := float64(width) / 2 / math.Tan(hfovDeg*math.Pi/360)
	return Camera{
		Width:  width,
		Height: height,
		Fx:     f,
		Fy:     f,
		Cx:     float64(width) / 2,
		Cy:     float64(height) / 2,
	}
}

// HalfDiagFOV returns the half field of view to the image corner, in
// radians. Used as the in-frame bound for sampled boresight offsets.
func (c Camera) HalfDiagFOV() float64 {
	hw := float64(c.Width) / 2 / c.Fx
	hh := float64(c.Height) / 2 / c.Fy
	return math.Atan(math.Hypot(hw, hh))
}

// Project maps a camera-frame point to pixel coordinates. The second
// return is false when the point is behind the camera.
func (c Camera) Project(p r3.Vector) (r2.Point, bool) {
	if p.Z <= 0 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: c.Cx + c.Fx*p.X/p.Z,
		Y: c.Cy + c.Fy*p.Y/p.Z,
	}, true
}

// InFrame reports whether a pixel coordinate lies inside the image.
func (c Camera) InFrame(pt r2.Point) bool {
	return pt.X >= 0 && pt.X < float64(c.Width) && pt.Y >= 0 && pt.Y < float64(c.Height)
}

// Ray returns the unit direction, in the camera frame, of the ray
// through pixel (u, v).
func (c Camera) Ray(u, v float64) r3.Vector {
	return r3.Vector{
		X: (u - c.Cx) / c.Fx,
		Y: (v - c.Cy) / c.Fy,
		Z: 1,
	}.Normalize()
}
