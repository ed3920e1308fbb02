// Package trial runs the sample, render, estimate, score pipeline for
// single trials and whole batches.
package trial

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/astroviz/navbench/internal/config"
	"github.com/astroviz/navbench/internal/estimator"
	"github.com/astroviz/navbench/internal/render"
	"github.com/astroviz/navbench/internal/result"
	"github.com/astroviz/navbench/internal/sampler"
	"github.com/astroviz/navbench/internal/scene"
	"github.com/astroviz/navbench/internal/spatial"
)

// ReasonTimeout marks trials abandoned by the per-trial deadline.
const ReasonTimeout = "timeout"

// seed stream selectors, used as the second PCG seed word so the
// sampler, the sensor noise and RANSAC each see independent
// deterministic streams for the same trial
const (
	streamSample = 0x53414d50
	streamNoise  = 0x4e4f4953
	streamSolve  = 0x534f4c56
)

// Runner evaluates trials against one scenario configuration. Safe for
// concurrent use; per-worker state lives in the worker.
type Runner struct {
	cfg    *config.Config
	target *scene.Target
	cam    scene.Camera
	smp    *sampler.Sampler
	est    *estimator.Estimator

	// OnFrame, when set, receives each trial's rendered frame together
	// with its terminal record. Called from worker goroutines.
	OnFrame func(rec *result.Record, im *render.Image)
}

// NewRunner builds the shared trial machinery from a validated config.
func NewRunner(cfg *config.Config) (*Runner, error) {
	target := cfg.Target.BuildTarget()
	cam := cfg.Camera.BuildCamera()
	smp, err := sampler.New(cfg.Sampler, target, cam)
	if err != nil {
		return nil, err
	}
	est, err := estimator.New(cfg.Estimator, target, cam)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, target: target, cam: cam, smp: smp, est: est}, nil
}

// TrialSeed derives the deterministic seed of one trial from the batch
// master seed.
func (r *Runner) TrialSeed(trial int) uint64 {
	return r.cfg.Batch.Seed + uint64(trial)
}

// Run executes one trial to a terminal state. It never returns an
// error: every failure mode is a terminal record state with a reason.
func (r *Runner) Run(ctx context.Context, trial int, renderer *render.Renderer) *result.Record {
	start := time.Now()
	seed := r.TrialSeed(trial)
	rec := &result.Record{Trial: trial, Seed: seed, State: result.StatePending}
	var frame *render.Image
	defer func() {
		rec.DurationMillis = time.Since(start).Milliseconds()
		if r.OnFrame != nil && frame != nil {
			r.OnFrame(rec, frame)
		}
	}()

	if t := r.cfg.Batch.TrialTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	scn, err := r.smp.Sample(rand.NewPCG(seed, streamSample))
	if err != nil {
		rec.State = result.StateRejected
		rec.Reason = err.Error()
		return rec
	}
	rec.State = result.StateSampled
	rec.Range = scn.Range
	rec.PhaseDeg = scn.PhaseDeg
	rec.Truth = result.NewPoseRecord(scn.Truth)

	sc := scene.New(r.target, r.cam, scn.Sun)
	if err := sc.SetPose(scn.Truth); err != nil {
		// sampler constraints should prevent this
		rec.State = result.StateRejected
		rec.Reason = err.Error()
		return rec
	}
	rec.VisibleFraction = sc.VisibleFraction()

	noise := rand.New(rand.NewPCG(seed, streamNoise))
	im, err := renderer.Render(ctx, sc, noise)
	if err != nil {
		rec.State = result.StateFailed
		rec.Reason = failReason(ctx, err)
		return rec
	}
	rec.State = result.StateRendered
	frame = im

	var prior *spatial.Pose
	if r.cfg.Batch.Tracking {
		prior = scn.Prior
	}
	solve := rand.New(rand.NewPCG(seed, streamSolve))
	est, err := r.est.Estimate(im, prior, solve)
	rec.Features = est.Features
	rec.Matched = est.Matched
	if err != nil {
		rec.State = result.StateFailed
		rec.Reason = failReason(ctx, err)
		return rec
	}
	rec.State = result.StateEstimated
	rec.Estimate = result.NewPoseRecord(est.Pose)
	rec.Converged = est.Converged
	rec.Inliers = est.Inliers
	rec.Confidence = est.Confidence
	rec.ResidualPx = est.ResidualPx

	score(rec, est.Pose, scn.Truth)
	rec.State = result.StateScored
	return rec
}

// score fills the error metrics: absolute position and orientation
// error, plus the range-normalized lateral and distance components of
// the camera-frame position error.
func score(rec *result.Record, est, truth spatial.Pose) {
	posErr := spatial.PositionError(est, truth)
	angErr := spatial.OrientationError(est, truth)
	d := est.Position.Sub(truth.Position)
	lateral := math.Hypot(d.X, d.Y) / rec.Range
	distance := math.Abs(d.Z) / rec.Range
	rec.PositionErr = &posErr
	rec.AngularErrDeg = &angErr
	rec.LateralErr = &lateral
	rec.DistanceErr = &distance
}

func failReason(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return err.Error()
}

// RunBatch evaluates every configured trial across the worker pool and
// returns completed records in trial order. onRecord, when non-nil, is
// called from worker goroutines as each trial finishes. Cancellation
// keeps the records already completed.
func (r *Runner) RunBatch(ctx context.Context, onRecord func(*result.Record)) []*result.Record {
	var (
		mu   sync.Mutex
		recs []*result.Record
	)
	RunPool(ctx, r.cfg.Batch.Workers, r.cfg.Batch.Trials, func(worker int, jobs <-chan int) {
		renderer, err := render.New(r.cfg.Render.Options())
		if err != nil {
			// config validation bounds the resolution, so this is a
			// programming error worth surfacing loudly
			log.Printf("worker %d: renderer init: %v", worker, err)
			for range jobs {
			}
			return
		}
		for trial := range jobs {
			rec := r.Run(ctx, trial, renderer)
			if ctx.Err() != nil && rec.State == result.StateFailed && rec.Reason != ReasonTimeout {
				// interrupted mid-flight by batch cancellation, not a
				// real outcome
				continue
			}
			mu.Lock()
			recs = append(recs, rec)
			mu.Unlock()
			if onRecord != nil {
				onRecord(rec)
			}
		}
	})
	sort.Slice(recs, func(i, j int) bool { return recs[i].Trial < recs[j].Trial })
	return recs
}
