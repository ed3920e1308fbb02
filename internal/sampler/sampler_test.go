package sampler_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/astroviz/navbench/internal/sampler"
	"github.com/astroviz/navbench/internal/scene"
)

func testGeometry() (*scene.Target, scene.Camera) {
	target := scene.NewTarget(r3.Vector{X: 1, Y: 0.9, Z: 0.8}, 48, 42)
	return target, scene.NewCameraFromFOV(1024, 1024, 20)
}

func baseConfig() sampler.Config {
	return sampler.Config{
		RangeDist:      sampler.RangeUniform,
		RangeMin:       5,
		RangeMax:       50,
		FrameMarginDeg: 1,
		MinPhaseDeg:    0,
		MaxPhaseDeg:    120,
		MaxAttempts:    200,
	}
}

func TestSampleSatisfiesConstraints(t *testing.T) {
	target, cam := testGeometry()
	s, err := sampler.New(baseConfig(), target, cam)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 50; i++ {
		sc, err := s.Sample(rand.NewPCG(99, uint64(i)))
		if err != nil {
			t.Fatalf("Sample %d: %v", i, err)
		}
		if sc.Range < 5 || sc.Range > 50 {
			t.Fatalf("range %v outside [5, 50]", sc.Range)
		}
		if got := sc.Truth.Range(); math.Abs(got-sc.Range) > 1e-9 {
			t.Fatalf("pose range %v disagrees with drawn range %v", got, sc.Range)
		}
		if sc.PhaseDeg < 0 || sc.PhaseDeg > 120 {
			t.Fatalf("phase %v outside [0, 120]", sc.PhaseDeg)
		}
		halfDiag := cam.HalfDiagFOV() * 180 / math.Pi
		if sc.OffAxisDeg >= halfDiag {
			t.Fatalf("off-axis %v exceeds half diagonal FOV %v", sc.OffAxisDeg, halfDiag)
		}
		if math.Abs(sc.Sun.Norm()-1) > 1e-9 {
			t.Fatalf("sun direction not unit: %v", sc.Sun)
		}
	}
}

func TestSampleDeterministic(t *testing.T) {
	target, cam := testGeometry()
	s, err := sampler.New(baseConfig(), target, cam)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := s.Sample(rand.NewPCG(7, 3))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	b, err := s.Sample(rand.NewPCG(7, 3))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if a.Truth != b.Truth || a.Sun != b.Sun || a.Range != b.Range {
		t.Fatal("identical sources produced different scenarios")
	}
}

func TestSampleNegativeRangeAlwaysRejected(t *testing.T) {
	cfg := baseConfig()
	cfg.RangeMin = -10
	cfg.RangeMax = -5
	target, cam := testGeometry()
	s, err := sampler.New(cfg, target, cam)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Sample(rand.NewPCG(1, 1)); !errors.Is(err, sampler.ErrSampleExhausted) {
		t.Fatalf("got %v, want sampler.ErrSampleExhausted", err)
	}
}

func TestSampleImpossiblePhaseRejected(t *testing.T) {
	cfg := baseConfig()
	cfg.MinPhaseDeg = 179.99
	cfg.MaxPhaseDeg = 180
	cfg.MaxAttempts = 50
	target, cam := testGeometry()
	s, err := sampler.New(cfg, target, cam)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Sample(rand.NewPCG(1, 1)); !errors.Is(err, sampler.ErrSampleExhausted) {
		t.Fatalf("got %v, want sampler.ErrSampleExhausted", err)
	}
}

func TestSamplePrior(t *testing.T) {
	cfg := baseConfig()
	cfg.PriorAttitudeSigmaDeg = 1
	cfg.PriorPositionSigma = 0.01
	target, cam := testGeometry()
	s, err := sampler.New(cfg, target, cam)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sc, err := s.Sample(rand.NewPCG(5, 5))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if sc.Prior == nil {
		t.Fatal("prior noise configured but no prior drawn")
	}
	if *sc.Prior == sc.Truth {
		t.Fatal("prior identical to truth")
	}
}

func TestInverseUniformRangeLaw(t *testing.T) {
	cfg := baseConfig()
	cfg.RangeDist = sampler.RangeInvUniform
	cfg.RangeMin = 5
	cfg.RangeMax = 100
	target, cam := testGeometry()
	s, err := sampler.New(cfg, target, cam)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 1/U concentrates mass near the short end
	short := 0
	const n = 400
	for i := 0; i < n; i++ {
		sc, err := s.Sample(rand.NewPCG(11, uint64(i)))
		if err != nil {
			t.Fatalf("Sample %d: %v", i, err)
		}
		if sc.Range < 5 || sc.Range > 100 {
			t.Fatalf("range %v outside [5, 100]", sc.Range)
		}
		if sc.Range < 52.5 {
			short++
		}
	}
	if short < n*3/5 {
		t.Fatalf("inverse-uniform drew only %d/%d short ranges", short, n)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*sampler.Config)
		wantErr bool
	}{
		{"valid", func(c *sampler.Config) {}, false},
		{"missing dist", func(c *sampler.Config) { c.RangeDist = "" }, true},
		{"unknown dist", func(c *sampler.Config) { c.RangeDist = "poisson" }, true},
		{"inverted range", func(c *sampler.Config) { c.RangeMin = 50; c.RangeMax = 5 }, true},
		{"negative range", func(c *sampler.Config) { c.RangeMin = -10; c.RangeMax = -5 }, false},
		{"normal without sigma", func(c *sampler.Config) { c.RangeDist = sampler.RangeNormal; c.RangeSigma = 0 }, true},
		{"inverted phase", func(c *sampler.Config) { c.MinPhaseDeg = 90; c.MaxPhaseDeg = 10 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
