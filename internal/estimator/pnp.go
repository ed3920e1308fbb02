package estimator

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

var errDegenerate = errors.New("degenerate point configuration")

// solveDLT recovers an initial pose from 2D-3D correspondences by the
// direct linear transform: each correspondence contributes two rows to
// a 2n x 12 system whose least-squares null vector is the flattened
// [R|t] projection, read off the smallest singular vector. The
// orthonormal rotation nearest the recovered 3x3 block is taken, and
// the sign is fixed so the points sit in front of the camera.
func solveDLT(corrs []Correspondence, cam scene.Camera) (spatial.Pose, error) {
	n := len(corrs)
	if n < 6 {
		return spatial.Pose{}, errDegenerate
	}
	a := mat.NewDense(2*n, 12, nil)
	for i, c := range corrs {
		x := (c.Pixel.X - cam.Cx) / cam.Fx
		y := (c.Pixel.Y - cam.Cy) / cam.Fy
		p := c.Point
		a.SetRow(2*i, []float64{
			p.X, p.Y, p.Z, 1, 0, 0, 0, 0,
			-x * p.X, -x * p.Y, -x * p.Z, -x,
		})
		a.SetRow(2*i+1, []float64{
			0, 0, 0, 0, p.X, p.Y, p.Z, 1,
			-y * p.X, -y * p.Y, -y * p.Z, -y,
		})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return spatial.Pose{}, errDegenerate
	}
	var v mat.Dense
	svd.VTo(&v)
	h := make([]float64, 12)
	for i := range h {
		h[i] = v.At(i, 11)
	}

	// resolve the projective sign ambiguity before orthonormalizing:
	// all observed points must have positive depth under [M|t]
	depth := 0.0
	for _, c := range corrs {
		depth += h[8]*c.Point.X + h[9]*c.Point.Y + h[10]*c.Point.Z + h[11]
	}
	if depth < 0 {
		for i := range h {
			h[i] = -h[i]
		}
	}

	m := mat.NewDense(3, 3, []float64{
		h[0], h[1], h[2],
		h[4], h[5], h[6],
		h[8], h[9], h[10],
	})
	t := r3.Vector{X: h[3], Y: h[7], Z: h[11]}

	// nearest rotation and the scale it absorbs
	var msvd mat.SVD
	if !msvd.Factorize(m, mat.SVDFull) {
		return spatial.Pose{}, errDegenerate
	}
	var u, vt mat.Dense
	msvd.UTo(&u)
	msvd.VTo(&vt)
	var r mat.Dense
	r.Mul(&u, vt.T())
	if mat.Det(&r) < 0 {
		u.Set(0, 2, -u.At(0, 2))
		u.Set(1, 2, -u.At(1, 2))
		u.Set(2, 2, -u.At(2, 2))
		r.Mul(&u, vt.T())
	}
	sv := msvd.Values(nil)
	scale := (sv[0] + sv[1] + sv[2]) / 3
	if scale < 1e-12 {
		return spatial.Pose{}, errDegenerate
	}
	t = t.Mul(1 / scale)

	var rm [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm[3*i+j] = r.At(i, j)
		}
	}
	return spatial.Pose{
		Position:    t,
		Orientation: spatial.FromRotationMatrix(rm),
	}, nil
}

// refineResult carries the Gauss-Newton outcome.
type refineResult struct {
	pose      spatial.Pose
	rms       float64
	iters     int
	converged bool
}

// refinePose iteratively minimizes pixel reprojection error from the
// given initial pose. The six-parameter update stacks a left rotation
// perturbation and a translation delta, solved in the least-squares
// sense each iteration. Divergence (cost blowing up or a point passing
// behind the camera) is an error; running out of iterations with a
// still-large step is reported as non-converged with the best pose kept.
func refinePose(init spatial.Pose, corrs []Correspondence, cam scene.Camera, maxIter int, eps float64) (refineResult, error) {
	n := len(corrs)
	if n < 3 {
		return refineResult{}, errDegenerate
	}
	pose := init
	jac := mat.NewDense(2*n, 6, nil)
	res := mat.NewVecDense(2*n, nil)
	var delta mat.VecDense

	prevCost := math.Inf(1)
	for iter := 1; iter <= maxIter; iter++ {
		cost := 0.0
		for i, c := range corrs {
			p := pose.Transform(c.Point)
			if p.Z <= 1e-9 {
				return refineResult{}, errDegenerate
			}
			u := cam.Cx + cam.Fx*p.X/p.Z
			v := cam.Cy + cam.Fy*p.Y/p.Z
			ru := u - c.Pixel.X
			rv := v - c.Pixel.Y
			res.SetVec(2*i, -ru)
			res.SetVec(2*i+1, -rv)
			cost += ru*ru + rv*rv

			iz := 1 / p.Z
			du := [3]float64{cam.Fx * iz, 0, -cam.Fx * p.X * iz * iz}
			dv := [3]float64{0, cam.Fy * iz, -cam.Fy * p.Y * iz * iz}
			// rotated point relative to the camera center
			q := p.Sub(pose.Position)
			// d(exp(w)q)/dw = -[q]x
			dpdw := [3][3]float64{
				{0, q.Z, -q.Y},
				{-q.Z, 0, q.X},
				{q.Y, -q.X, 0},
			}
			for k := 0; k < 3; k++ {
				var ju, jv float64
				for m := 0; m < 3; m++ {
					ju += du[m] * dpdw[m][k]
					jv += dv[m] * dpdw[m][k]
				}
				jac.Set(2*i, k, ju)
				jac.Set(2*i+1, k, jv)
				jac.Set(2*i, 3+k, du[k])
				jac.Set(2*i+1, 3+k, dv[k])
			}
		}

		if math.IsNaN(cost) || cost > 1e6*(prevCost+1) {
			return refineResult{}, errDegenerate
		}
		prevCost = cost

		if err := delta.SolveVec(jac, res); err != nil {
			return refineResult{}, errDegenerate
		}
		w := r3.Vector{X: delta.AtVec(0), Y: delta.AtVec(1), Z: delta.AtVec(2)}
		dt := r3.Vector{X: delta.AtVec(3), Y: delta.AtVec(4), Z: delta.AtVec(5)}
		pose.Orientation = spatial.Normalize(
			quat.Mul(spatial.FromRotationVector(w), pose.Orientation))
		pose.Position = pose.Position.Add(dt)

		step := math.Sqrt(w.Dot(w) + dt.Dot(dt))
		if step < eps {
			return refineResult{
				pose:      pose,
				rms:       math.Sqrt(cost / float64(2*n)),
				iters:     iter,
				converged: true,
			}, nil
		}
	}
	return refineResult{
		pose:  pose,
		rms:   math.Sqrt(prevCost / float64(2*n)),
		iters: maxIter,
	}, nil
}

// reprojectionError returns the pixel distance between a landmark's
// projection under pose and its matched spot.
func reprojectionError(pose spatial.Pose, c Correspondence, cam scene.Camera) float64 {
	p := pose.Transform(c.Point)
	px, ok := cam.Project(p)
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(px.X-c.Pixel.X, px.Y-c.Pixel.Y)
}
