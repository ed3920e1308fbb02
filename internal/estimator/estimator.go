// Package estimator recovers the 6-DOF camera-relative pose of the
// target from a single rendered frame: bright-spot detection,
// photometric landmark correspondence, DLT initialization, Gauss-Newton
// reprojection refinement and a guided geometric re-match, with an
// optional RANSAC consensus loop.
package estimator

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/astroviz/navbench/internal/render"
	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

var (
	// ErrTooFewFeatures indicates the frame yielded fewer usable
	// landmark correspondences than the solver minimum.
	ErrTooFewFeatures = errors.New("too few feature correspondences")

	// ErrNoConvergence indicates the solver diverged outright. Hitting
	// the iteration budget without divergence is NOT this error; that
	// case returns a best-effort Estimate with Converged false.
	ErrNoConvergence = errors.New("pose solver diverged")
)

// EstimationError wraps a pipeline failure with the stage it occurred
// in.
type EstimationError struct {
	Stage string
	Err   error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("estimation failed at %s: %v", e.Stage, e.Err)
}

func (e *EstimationError) Unwrap() error { return e.Err }

// Config tunes the pipeline. Iteration budgets and the convergence
// epsilon come from configuration, never from constants, so batches can
// trade accuracy for throughput.
type Config struct {
	MinCorrespondences int     `yaml:"min_correspondences"`
	MaxIterations      int     `yaml:"max_iterations"`
	ConvergenceEps     float64 `yaml:"convergence_eps"`

	RANSAC RANSACConfig `yaml:"ransac"`
}

// Validate applies defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.MinCorrespondences == 0 {
		c.MinCorrespondences = 6
	}
	if c.MinCorrespondences < 3 {
		return fmt.Errorf("estimator: min_correspondences %d below solver minimum 3", c.MinCorrespondences)
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 25
	}
	if c.MaxIterations < 1 {
		return errors.New("estimator: max_iterations must be positive")
	}
	if c.ConvergenceEps == 0 {
		c.ConvergenceEps = 1e-8
	}
	if c.ConvergenceEps < 0 {
		return errors.New("estimator: convergence_eps must be positive")
	}
	if c.RANSAC.Iterations > 0 && c.RANSAC.InlierThreshold <= 0 {
		return errors.New("estimator: ransac inlier_threshold must be positive")
	}
	return nil
}

// Estimate is a recovered pose with its quality measures.
type Estimate struct {
	Pose spatial.Pose

	// Converged is false when the refinement budget ran out before the
	// update step shrank below epsilon; the pose is the last iterate.
	Converged bool

	// Inliers is the number of correspondences consistent with the
	// final pose; Confidence is the inlier fraction over the
	// correspondences used.
	Inliers    int
	Confidence float64

	Features   int     // detected spots
	Matched    int     // correspondences used by the final solve
	ResidualPx float64 // RMS reprojection residual
	Iterations int
}

// Estimator solves frames against a fixed landmark catalog and camera.
// Safe for concurrent use.
type Estimator struct {
	cfg    Config
	target *scene.Target
	cam    scene.Camera
}

// New validates the config and binds the catalog.
func New(cfg Config, target *scene.Target, cam scene.Camera) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, target: target, cam: cam}, nil
}

// Estimate runs the full pipeline on one frame. A non-nil prior skips
// DLT and seeds refinement directly (tracking mode). The rng drives
// consensus sampling, both the configured RANSAC loop and the
// divergence fallback; nil disables both.
func (e *Estimator) Estimate(im *render.Image, prior *spatial.Pose, rng *rand.Rand) (Estimate, error) {
	spots := DetectSpots(im, e.cam.Width, e.cam.Height)
	corrs := matchSpots(spots, e.target.Landmarks)
	est := Estimate{Features: len(spots), Matched: len(corrs)}
	if len(corrs) < e.cfg.MinCorrespondences {
		return est, &EstimationError{Stage: "correspondence", Err: ErrTooFewFeatures}
	}

	var init spatial.Pose
	switch {
	case prior != nil:
		init = *prior
	case e.cfg.RANSAC.Iterations > 0:
		pose, inliers, ok := ransacPose(corrs, e.cam, e.cfg.RANSAC, rng)
		if !ok {
			return est, &EstimationError{Stage: "ransac", Err: ErrTooFewFeatures}
		}
		init = pose
		corrs = inliers
	default:
		pose, err := solveDLT(corrs, e.cam)
		if err != nil {
			return est, &EstimationError{Stage: "dlt", Err: ErrNoConvergence}
		}
		init = pose
	}

	ref, err := refinePose(init, corrs, e.cam, e.cfg.MaxIterations, e.cfg.ConvergenceEps)
	if err != nil && e.cfg.RANSAC.Iterations == 0 && prior == nil && rng != nil {
		// a single wrong signature match can poison the linear
		// initialization; retry over minimal consensus subsets before
		// giving up
		fallback := RANSACConfig{Iterations: 32, InlierThreshold: 3, MinInliers: e.cfg.MinCorrespondences}
		if pose, inliers, ok := ransacPose(corrs, e.cam, fallback, rng); ok {
			corrs = inliers
			ref, err = refinePose(pose, corrs, e.cam, e.cfg.MaxIterations, e.cfg.ConvergenceEps)
		}
	}
	if err != nil {
		return est, &EstimationError{Stage: "refine", Err: ErrNoConvergence}
	}

	thresh := e.cfg.RANSAC.InlierThreshold
	if thresh <= 0 {
		thresh = 2
	}

	// second pass: with a pose in hand, re-match all detected spots
	// geometrically and refine again over the enlarged set
	if guided := guidedMatches(spots, e.target.Landmarks, ref.pose, e.cam, 2*thresh); len(guided) > len(corrs) {
		if ref2, err := refinePose(ref.pose, guided, e.cam, e.cfg.MaxIterations, e.cfg.ConvergenceEps); err == nil {
			ref = ref2
			corrs = guided
		}
	}

	est.Matched = len(corrs)
	est.Pose = ref.pose
	est.Converged = ref.converged
	est.ResidualPx = ref.rms
	est.Iterations = ref.iters

	for _, c := range corrs {
		if reprojectionError(ref.pose, c, e.cam) <= thresh {
			est.Inliers++
		}
	}
	if len(corrs) > 0 {
		est.Confidence = float64(est.Inliers) / float64(len(corrs))
	}
	return est, nil
}
