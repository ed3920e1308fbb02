//go:build integration

package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/astroviz/navbench/internal/config"
	"github.com/astroviz/navbench/internal/report"
	"github.com/astroviz/navbench/internal/result"
	"github.com/astroviz/navbench/internal/trial"
)

// Full-resolution batch across the whole range envelope. Slow, so gated
// behind NAVBENCH_INTEGRATION_TESTS.
func TestFullResolutionBatch(t *testing.T) {
	if os.Getenv("NAVBENCH_INTEGRATION_TESTS") == "" {
		t.Skip("set NAVBENCH_INTEGRATION_TESTS=1 to run integration tests")
	}

	cfg, err := config.Load("testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	cfg.Batch.Trials = 50
	cfg.Batch.Workers = 4
	cfg.Batch.Seed = 20260831
	cfg.Results.Dir = t.TempDir()

	runner, err := trial.NewRunner(cfg)
	if err != nil {
		t.Fatalf("building runner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	recs := runner.RunBatch(ctx, nil)
	if len(recs) != cfg.Batch.Trials {
		t.Fatalf("expected %d records, got %d", cfg.Batch.Trials, len(recs))
	}

	sum := report.Aggregate(recs)
	if total := sum.SuccessRate + sum.FailureRate + sum.RejectionRate; total < 0.999 || total > 1.001 {
		t.Fatalf("rates do not sum to 1: %v", total)
	}
	// Most of the envelope should be solvable at full resolution.
	if sum.SuccessRate < 0.5 {
		t.Fatalf("success rate %.2f too low for the nominal envelope", sum.SuccessRate)
	}
	for _, rec := range recs {
		if rec.State == result.StateScored && *rec.PositionErr > 0.10*rec.Range {
			t.Errorf("trial %d: position error %.3f exceeds 10%% of range %.1f",
				rec.Trial, *rec.PositionErr, rec.Range)
		}
	}
}
