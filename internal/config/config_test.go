package config_test

import (
	"testing"

	"github.com/astroviz/navbench/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "minimal" {
		t.Errorf("expected name 'minimal', got %q", cfg.Name)
	}
	if cfg.Target.Landmarks != 48 {
		t.Errorf("expected 48 landmarks, got %d", cfg.Target.Landmarks)
	}
	if cfg.Batch.Trials != 10 {
		t.Errorf("expected 10 trials, got %d", cfg.Batch.Trials)
	}
	// defaults applied
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected default 4 workers, got %d", cfg.Batch.Workers)
	}
	if cfg.Batch.TrialTimeoutSeconds != 30 {
		t.Errorf("expected default 30s trial timeout, got %d", cfg.Batch.TrialTimeoutSeconds)
	}
	if cfg.Render.Width != cfg.Camera.Width {
		t.Errorf("render width should default to camera width, got %d", cfg.Render.Width)
	}
	if cfg.Results.Dir != "results" {
		t.Errorf("expected default results dir, got %q", cfg.Results.Dir)
	}
	if cfg.Estimator.MinCorrespondences != 6 {
		t.Errorf("expected default 6 min correspondences, got %d", cfg.Estimator.MinCorrespondences)
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sampler.RangeDist != "inverse-uniform" {
		t.Errorf("expected inverse-uniform range law, got %q", cfg.Sampler.RangeDist)
	}
	if !cfg.Batch.Tracking {
		t.Error("expected tracking mode enabled")
	}
	if cfg.Estimator.RANSAC.Iterations != 64 {
		t.Errorf("expected 64 ransac iterations, got %d", cfg.Estimator.RANSAC.Iterations)
	}
	if cfg.Render.Width != 512 {
		t.Errorf("expected render width 512, got %d", cfg.Render.Width)
	}
	if got := cfg.Batch.TrialTimeout().Seconds(); got != 20 {
		t.Errorf("expected 20s trial timeout, got %v", got)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := config.Load("../../testdata/invalid.yaml"); err == nil {
		t.Error("expected error for negative semi axis")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := config.Load("nonexistent.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuilders(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	target := cfg.Target.BuildTarget()
	if len(target.Landmarks) != 48 {
		t.Fatalf("built target has %d landmarks", len(target.Landmarks))
	}
	cam := cfg.Camera.BuildCamera()
	if cam.Width != 1024 || cam.Fx <= 0 {
		t.Fatalf("built camera malformed: %+v", cam)
	}
	opts := cfg.Render.Options()
	if opts.Width != 1024 || !opts.Lambertian || !opts.Shadows {
		t.Fatalf("render defaults not applied: %+v", opts)
	}
}
