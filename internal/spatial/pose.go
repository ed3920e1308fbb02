// Package spatial provides the 6-DOF pose representation used throughout
// the harness: a position vector paired with a unit quaternion orientation.
package spatial

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform from the target body frame to the camera
// frame: pCam = Rotate(Orientation, pBody) + Position. Poses are value
// types and are never mutated after construction.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// NewPose returns a pose with the orientation normalized to a unit
// quaternion.
func NewPose(position r3.Vector, orientation quat.Number) Pose {
	return Pose{Position: position, Orientation: Normalize(orientation)}
}

// Identity is the zero-translation, zero-rotation pose.
func Identity() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// Transform maps a body-frame point into the camera frame.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return Rotate(p.Orientation, v).Add(p.Position)
}

// Invert returns the camera-to-body transform.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.Orientation)
	return Pose{
		Position:    Rotate(inv, p.Position.Mul(-1)),
		Orientation: inv,
	}
}

// Compose returns the pose equivalent to applying q first, then p.
func (p Pose) Compose(q Pose) Pose {
	return Pose{
		Position:    p.Transform(q.Position),
		Orientation: Normalize(quat.Mul(p.Orientation, q.Orientation)),
	}
}

// Range is the camera-to-target distance.
func (p Pose) Range() float64 {
	return p.Position.Norm()
}

// PositionError is the Euclidean norm of the position difference
// between two poses.
func PositionError(a, b Pose) float64 {
	return a.Position.Sub(b.Position).Norm()
}

// OrientationError is the magnitude, in degrees, of the rotation that
// maps one orientation onto the other. The result is always in [0, 180]
// and is zero for a pose compared against itself.
func OrientationError(a, b Pose) float64 {
	return AngleBetween(a.Orientation, b.Orientation) * 180 / math.Pi
}

// Normalize scales q to unit length. The zero quaternion is mapped to
// the identity rotation.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the unit quaternion q to vector v.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// AngleBetween returns the relative rotation angle between two unit
// quaternions, in radians, in [0, pi]. Computed through atan2 of the
// relative quaternion, which stays exact for near-identical rotations
// where acos of the dot product loses half the mantissa.
func AngleBetween(a, b quat.Number) float64 {
	d := quat.Mul(a, quat.Conj(b))
	s := math.Sqrt(d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
	// d and -d represent the same rotation.
	return 2 * math.Atan2(s, math.Abs(d.Real))
}

// FromAxisAngle builds a unit quaternion rotating by angle radians
// around axis.
func FromAxisAngle(axis r3.Vector, angle float64) quat.Number {
	n := axis.Norm()
	if n == 0 {
		return quat.Number{Real: 1}
	}
	s := math.Sin(angle/2) / n
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// FromRotationVector is the exponential map: a rotation vector whose
// direction is the axis and magnitude the angle in radians.
func FromRotationVector(v r3.Vector) quat.Number {
	return FromAxisAngle(v, v.Norm())
}

// ToRotationVector is the logarithmic map inverse of FromRotationVector.
func ToRotationVector(q quat.Number) r3.Vector {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	s := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if s < 1e-12 {
		return r3.Vector{}
	}
	angle := 2 * math.Atan2(s, q.Real)
	return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}.Mul(angle / s)
}

// RotationMatrix returns the row-major 3x3 rotation matrix of q.
func RotationMatrix(q quat.Number) [9]float64 {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// FromRotationMatrix converts a row-major 3x3 rotation matrix to a unit
// quaternion using Shepperd's method.
func FromRotationMatrix(m [9]float64) quat.Number {
	t := m[0] + m[4] + m[8]
	var q quat.Number
	switch {
	case t > 0:
		s := math.Sqrt(t+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (m[7] - m[5]) / s,
			Jmag: (m[2] - m[6]) / s,
			Kmag: (m[3] - m[1]) / s,
		}
	case m[0] > m[4] && m[0] > m[8]:
		s := math.Sqrt(1+m[0]-m[4]-m[8]) * 2
		q = quat.Number{
			Real: (m[7] - m[5]) / s,
			Imag: s / 4,
			Jmag: (m[1] + m[3]) / s,
			Kmag: (m[2] + m[6]) / s,
		}
	case m[4] > m[8]:
		s := math.Sqrt(1+m[4]-m[0]-m[8]) * 2
		q = quat.Number{
			Real: (m[2] - m[6]) / s,
			Imag: (m[1] + m[3]) / s,
			Jmag: s / 4,
			Kmag: (m[5] + m[7]) / s,
		}
	default:
		s := math.Sqrt(1+m[8]-m[0]-m[4]) * 2
		q = quat.Number{
			Real: (m[3] - m[1]) / s,
			Imag: (m[2] + m[6]) / s,
			Jmag: (m[5] + m[7]) / s,
			Kmag: s / 4,
		}
	}
	return Normalize(q)
}

// LookAt builds the orientation of a camera at eye whose +Z boresight
// points at center, with up resolving the roll. Returned quaternion maps
// world coordinates to camera coordinates.
func LookAt(eye, center, up r3.Vector) quat.Number {
	fwd := center.Sub(eye).Normalize()
	right := up.Cross(fwd)
	if right.Norm() < 1e-9 {
		// up parallel to boresight; pick an arbitrary perpendicular
		right = r3.Vector{X: 1}.Cross(fwd)
		if right.Norm() < 1e-9 {
			right = r3.Vector{Y: 1}.Cross(fwd)
		}
	}
	right = right.Normalize()
	camUp := fwd.Cross(right)
	// rows of the world-to-camera rotation
	return FromRotationMatrix([9]float64{
		right.X, right.Y, right.Z,
		camUp.X, camUp.Y, camUp.Z,
		fwd.X, fwd.Y, fwd.Z,
	})
}

// PoseLookAt builds the full camera pose for an eye point observing
// center: LookAt orientation plus the matching translation, so that
// Transform maps world points into the camera frame.
func PoseLookAt(eye, center, up r3.Vector) Pose {
	q := LookAt(eye, center, up)
	return Pose{Position: Rotate(q, eye.Mul(-1)), Orientation: q}
}

// RandomUnitVector draws a direction uniformly on the sphere.
func RandomUnitVector(rng *rand.Rand) r3.Vector {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	s := math.Sqrt(1 - z*z)
	return r3.Vector{X: s * math.Cos(phi), Y: s * math.Sin(phi), Z: z}
}

// RandomRotation draws a uniformly distributed unit quaternion.
func RandomRotation(rng *rand.Rand) quat.Number {
	u1, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
	a, b := math.Sqrt(1-u1), math.Sqrt(u1)
	return quat.Number{
		Real: a * math.Sin(2*math.Pi*u2),
		Imag: a * math.Cos(2*math.Pi*u2),
		Jmag: b * math.Sin(2*math.Pi*u3),
		Kmag: b * math.Cos(2*math.Pi*u3),
	}
}

// PerturbRotation applies a random rotation of at most maxAngle radians
// to q, drawn uniformly in axis and angle.
func PerturbRotation(rng *rand.Rand, q quat.Number, maxAngle float64) quat.Number {
	axis := RandomUnitVector(rng)
	angle := maxAngle * rng.Float64()
	return Normalize(quat.Mul(FromAxisAngle(axis, angle), q))
}
