// Package sampler draws randomized trial scenarios: a ground-truth
// camera pose relative to the target, a sun direction, and an optional
// noisy prior. Hard constraints (positive range, target inside the
// frame, phase-angle bounds) are enforced by rejection with a bounded
// retry budget.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

// ErrSampleExhausted is returned when the retry budget runs out before
// a scenario satisfies every constraint.
var ErrSampleExhausted = errors.New("sample constraints not satisfiable within retry budget")

// Range distribution names accepted by Config.RangeDist.
const (
	RangeUniform    = "uniform"
	RangeInvUniform = "inverse-uniform"
	RangeNormal     = "normal"
)

// Config holds the scenario distributions. Angles are degrees.
type Config struct {
	RangeDist  string  `yaml:"range_dist"`
	RangeMin   float64 `yaml:"range_min"`
	RangeMax   float64 `yaml:"range_max"`
	RangeMean  float64 `yaml:"range_mean"`  // normal only
	RangeSigma float64 `yaml:"range_sigma"` // normal only

	// FrameMarginDeg keeps the target's apparent disk this far inside
	// the frame diagonal.
	FrameMarginDeg float64 `yaml:"frame_margin_deg"`

	MinPhaseDeg float64 `yaml:"min_phase_deg"`
	MaxPhaseDeg float64 `yaml:"max_phase_deg"`

	// Prior noise; zero sigmas disable the prior entirely.
	PriorAttitudeSigmaDeg float64 `yaml:"prior_attitude_sigma_deg"`
	PriorPositionSigma    float64 `yaml:"prior_position_sigma"` // fraction of range

	MaxAttempts int `yaml:"max_attempts"`
}

// Validate checks distribution names and bounds. A negative range
// interval is allowed: it yields rejection on every draw, which the
// batch surfaces as a 100% rejection rate rather than a config error.
func (c Config) Validate() error {
	switch c.RangeDist {
	case RangeUniform, RangeInvUniform, RangeNormal:
	case "":
		return errors.New("sampler: range_dist is required")
	default:
		return fmt.Errorf("sampler: unknown range_dist %q", c.RangeDist)
	}
	if c.RangeDist != RangeNormal && c.RangeMin > c.RangeMax {
		return fmt.Errorf("sampler: range_min %v > range_max %v", c.RangeMin, c.RangeMax)
	}
	if c.RangeDist == RangeNormal && c.RangeSigma <= 0 {
		return errors.New("sampler: range_sigma must be positive")
	}
	if c.MinPhaseDeg < 0 || c.MaxPhaseDeg > 180 || c.MinPhaseDeg > c.MaxPhaseDeg {
		return fmt.Errorf("sampler: phase bounds [%v, %v] out of order", c.MinPhaseDeg, c.MaxPhaseDeg)
	}
	return nil
}

func (c Config) attempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return 100
}

// Scenario is one fully-drawn trial setup.
type Scenario struct {
	// Truth maps body-frame points into the camera frame.
	Truth spatial.Pose

	// Sun is the unit body-frame direction toward the sun.
	Sun r3.Vector

	Range      float64
	PhaseDeg   float64
	OffAxisDeg float64

	// Prior is a noisy initial pose for tracking-mode estimation; nil
	// when prior noise is disabled.
	Prior *spatial.Pose
}

// Sampler draws scenarios against a fixed target and camera.
type Sampler struct {
	cfg    Config
	target *scene.Target
	cam    scene.Camera
}

// New validates the config and binds it to the scene geometry.
func New(cfg Config, target *scene.Target, cam scene.Camera) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{cfg: cfg, target: target, cam: cam}, nil
}

// Sample draws one scenario from src. The same source state always
// yields the same scenario.
func (s *Sampler) Sample(src rand.Source) (Scenario, error) {
	rng := rand.New(src)
	rangeDist := s.rangeDist(src)
	minPhase := s.cfg.MinPhaseDeg * math.Pi / 180
	maxPhase := s.cfg.MaxPhaseDeg * math.Pi / 180
	halfDiag := s.cam.HalfDiagFOV()
	margin := s.cfg.FrameMarginDeg * math.Pi / 180

	for attempt := 0; attempt < s.cfg.attempts(); attempt++ {
		r := rangeDist()
		if r <= s.target.MaxRadius() {
			continue
		}
		// apparent angular radius of the target disk
		appRad := math.Asin(clamp(s.target.MaxRadius()/r, 0, 1))
		maxOff := halfDiag - margin - appRad
		if maxOff <= 0 {
			continue
		}

		eyeDir := spatial.RandomUnitVector(rng)
		eye := eyeDir.Mul(r)
		q := spatial.LookAt(eye, r3.Vector{}, r3.Vector{Y: 1})

		// off-boresight tilt with uniform azimuth, then roll
		offAxis := rng.Float64() * maxOff
		azimuth := rng.Float64() * 2 * math.Pi
		tiltAxis := r3.Vector{X: math.Cos(azimuth), Y: math.Sin(azimuth)}
		roll := rng.Float64() * 2 * math.Pi
		delta := quat.Mul(
			spatial.FromAxisAngle(r3.Vector{Z: 1}, roll),
			spatial.FromAxisAngle(tiltAxis, offAxis),
		)
		orient := spatial.Normalize(quat.Mul(delta, q))
		truth := spatial.Pose{
			Position:    spatial.Rotate(orient, eye.Mul(-1)),
			Orientation: orient,
		}

		sun := spatial.RandomUnitVector(rng)
		phase := math.Acos(clamp(sun.Dot(eyeDir), -1, 1))
		if phase < minPhase || phase > maxPhase {
			continue
		}

		sc := Scenario{
			Truth:      truth,
			Sun:        sun,
			Range:      r,
			PhaseDeg:   phase * 180 / math.Pi,
			OffAxisDeg: offAxis * 180 / math.Pi,
		}
		if s.cfg.PriorAttitudeSigmaDeg > 0 || s.cfg.PriorPositionSigma > 0 {
			sc.Prior = s.drawPrior(rng, truth, r)
		}
		return sc, nil
	}
	return Scenario{}, ErrSampleExhausted
}

func (s *Sampler) drawPrior(rng *rand.Rand, truth spatial.Pose, r float64) *spatial.Pose {
	p := truth
	if sig := s.cfg.PriorAttitudeSigmaDeg; sig > 0 {
		axis := spatial.RandomUnitVector(rng)
		angle := rng.NormFloat64() * sig * math.Pi / 180
		p.Orientation = spatial.Normalize(
			quat.Mul(spatial.FromAxisAngle(axis, angle), p.Orientation))
	}
	if sig := s.cfg.PriorPositionSigma; sig > 0 {
		p.Position = p.Position.Add(r3.Vector{
			X: rng.NormFloat64() * sig * r,
			Y: rng.NormFloat64() * sig * r,
			Z: rng.NormFloat64() * sig * r,
		})
	}
	return &p
}

// rangeDist returns a draw function for the configured range law. The
// inverse-uniform law draws U ~ Uniform(1/max, 1/min) and returns 1/U,
// concentrating trials at short range the way approach trajectories do.
func (s *Sampler) rangeDist(src rand.Source) func() float64 {
	switch s.cfg.RangeDist {
	case RangeInvUniform:
		u := distuv.Uniform{Min: 1 / s.cfg.RangeMax, Max: 1 / s.cfg.RangeMin, Src: src}
		return func() float64 { return 1 / u.Rand() }
	case RangeNormal:
		n := distuv.Normal{Mu: s.cfg.RangeMean, Sigma: s.cfg.RangeSigma, Src: src}
		return n.Rand
	default:
		u := distuv.Uniform{Min: s.cfg.RangeMin, Max: s.cfg.RangeMax, Src: src}
		return u.Rand
	}
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
