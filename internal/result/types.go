package result

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/astroviz/navbench/internal/spatial"
)

// State is the trial lifecycle position. A trial either walks the full
// pipeline to scored or stops early as failed (estimator or timeout)
// or rejected (sampler exhausted its retry budget).
type State string

const (
	StatePending   State = "pending"
	StateSampled   State = "sampled"
	StateRendered  State = "rendered"
	StateEstimated State = "estimated"
	StateScored    State = "scored"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

// PoseRecord is the serialized form of a pose. Quaternion order is
// w, x, y, z.
type PoseRecord struct {
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"`
}

// NewPoseRecord captures a pose for serialization.
func NewPoseRecord(p spatial.Pose) *PoseRecord {
	return &PoseRecord{
		Position:   [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Quaternion: [4]float64{p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag},
	}
}

// Pose reconstructs the spatial form.
func (p *PoseRecord) Pose() spatial.Pose {
	return spatial.Pose{
		Position: r3Vec(p.Position),
		Orientation: quat.Number{
			Real: p.Quaternion[0],
			Imag: p.Quaternion[1],
			Jmag: p.Quaternion[2],
			Kmag: p.Quaternion[3],
		},
	}
}

// Record is the full per-trial outcome. Estimate and the error fields
// are nil for trials that never produced a pose; JSON renders them as
// null rather than a sentinel value.
type Record struct {
	Trial  int    `json:"trial"`
	Seed   uint64 `json:"seed"`
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`

	Range           float64 `json:"range,omitempty"`
	PhaseDeg        float64 `json:"phase_deg,omitempty"`
	VisibleFraction float64 `json:"visible_fraction,omitempty"`

	Truth    *PoseRecord `json:"truth,omitempty"`
	Estimate *PoseRecord `json:"estimate,omitempty"`

	Converged  bool    `json:"converged,omitempty"`
	Features   int     `json:"features,omitempty"`
	Matched    int     `json:"matched,omitempty"`
	Inliers    int     `json:"inliers,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	ResidualPx float64 `json:"residual_px,omitempty"`

	PositionErr    *float64 `json:"position_err,omitempty"`
	AngularErrDeg  *float64 `json:"angular_err_deg,omitempty"`
	LateralErr     *float64 `json:"lateral_err,omitempty"`
	DistanceErr    *float64 `json:"distance_err,omitempty"`
	DurationMillis int64    `json:"duration_ms"`
}

// Success reports whether the trial produced scored errors.
func (r *Record) Success() bool {
	return r.State == StateScored
}
