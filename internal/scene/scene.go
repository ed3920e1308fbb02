// Package scene holds the geometry of one observation: target shape,
// camera intrinsics, illumination, and the relative pose under test.
// It is pure data plus geometric queries; rendering and estimation
// live elsewhere.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/astroviz/navbench/internal/spatial"
)

// ErrInvalidGeometry is returned when the camera is placed inside the
// target body or at a non-positive range.
var ErrInvalidGeometry = errors.New("invalid camera/target geometry")

// Scene is the full state required to render or score one observation.
// A Scene is owned by a single trial; every field is set explicitly per
// trial and nothing carries over.
type Scene struct {
	Target *Target
	Camera Camera

	// Sun is the unit direction from the target toward the sun, in the
	// target body frame. Independent of the camera pose.
	Sun r3.Vector

	pose    spatial.Pose
	poseSet bool
}

// New returns a scene over a shared read-only target model. The pose
// must be set before any pose-dependent query.
func New(target *Target, cam Camera, sun r3.Vector) *Scene {
	return &Scene{Target: target, Camera: cam, Sun: sun.Normalize()}
}

// SetPose installs the body-to-camera transform for this trial. It
// rejects placements with the camera at non-positive range or inside
// the body.
func (s *Scene) SetPose(p spatial.Pose) error {
	r := p.Range()
	if r <= 0 {
		return fmt.Errorf("%w: range %.3f not positive", ErrInvalidGeometry, r)
	}
	camInBody := p.Invert().Position
	a := s.Target.SemiAxes
	u := r3.Vector{X: camInBody.X / a.X, Y: camInBody.Y / a.Y, Z: camInBody.Z / a.Z}
	if u.Norm() <= 1 {
		return fmt.Errorf("%w: camera inside target body", ErrInvalidGeometry)
	}
	s.pose = p
	s.poseSet = true
	return nil
}

// Pose returns the installed pose. The second return is false when no
// pose has been set since construction.
func (s *Scene) Pose() (spatial.Pose, bool) {
	return s.pose, s.poseSet
}

// SunInCamera returns the sun direction rotated into the camera frame.
func (s *Scene) SunInCamera() r3.Vector {
	return spatial.Rotate(s.pose.Orientation, s.Sun)
}

// ProjectCenter projects the body origin. The second return is false
// when the target center is behind the camera.
func (s *Scene) ProjectCenter() (r2.Point, bool) {
	return s.Camera.Project(s.pose.Position)
}

// ApparentRadius is the projected angular size of the target expressed
// in pixels, using the mean semi-axis.
func (s *Scene) ApparentRadius() float64 {
	return s.Camera.Fx * s.Target.MeanRadius() / s.pose.Range()
}

// VisibleFraction returns the fraction of the target's projected
// silhouette that falls inside the camera frame, approximating the
// silhouette as a disk of the mean radius. Returns 0 when the target
// is behind the camera.
func (s *Scene) VisibleFraction() float64 {
	center, ok := s.ProjectCenter()
	if !ok {
		return 0
	}
	r := s.ApparentRadius()
	if r <= 0 {
		return 0
	}
	// grid estimate of the disk/frame overlap
	const n = 48
	inside, total := 0, 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := center.X + r*(2*(float64(i)+0.5)/n-1)
			y := center.Y + r*(2*(float64(j)+0.5)/n-1)
			dx, dy := x-center.X, y-center.Y
			if dx*dx+dy*dy > r*r {
				continue
			}
			total++
			if s.Camera.InFrame(r2.Point{X: x, Y: y}) {
				inside++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inside) / float64(total)
}

// VisibleLandmark is a landmark that faces the camera, is lit by the
// sun, and projects inside the frame.
type VisibleLandmark struct {
	Landmark
	Pixel    r2.Point
	CamPoint r3.Vector // camera-frame location
	Lambert  float64   // diffuse illumination factor at the landmark
}

// Facing/illumination floors below which a landmark cannot produce a
// usable image feature.
const (
	minFacing  = 0.15
	minLambert = 0.10
)

// VisibleLandmarks returns landmarks that would appear as features in a
// rendered image of the current pose.
func (s *Scene) VisibleLandmarks() []VisibleLandmark {
	var out []VisibleLandmark
	camInBody := s.pose.Invert().Position
	for _, lm := range s.Target.Landmarks {
		toCam := camInBody.Sub(lm.Point).Normalize()
		if lm.Normal.Dot(toCam) < minFacing {
			continue
		}
		lambert := lm.Normal.Dot(s.Sun)
		if lambert < minLambert {
			continue
		}
		camPt := s.pose.Transform(lm.Point)
		px, ok := s.Camera.Project(camPt)
		if !ok || !s.Camera.InFrame(px) {
			continue
		}
		out = append(out, VisibleLandmark{
			Landmark: lm,
			Pixel:    px,
			CamPoint: camPt,
			Lambert:  lambert,
		})
	}
	return out
}

// PhaseAngle returns the sun-target-camera angle in radians: the angle
// at the target between the sun direction and the camera direction.
func (s *Scene) PhaseAngle() float64 {
	camDir := s.pose.Invert().Position.Normalize()
	return math.Acos(clamp(s.Sun.Dot(camDir), -1, 1))
}
