package report_test

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astroviz/navbench/internal/report"
	"github.com/astroviz/navbench/internal/result"
)

func scored(trial int, rng, posErr, angErr float64) *result.Record {
	lat := posErr / rng
	dist := posErr / (2 * rng)
	return &result.Record{
		Trial: trial, State: result.StateScored, Range: rng,
		PositionErr: &posErr, AngularErrDeg: &angErr,
		LateralErr: &lat, DistanceErr: &dist,
	}
}

func TestAggregateRates(t *testing.T) {
	recs := []*result.Record{
		scored(0, 10, 0.1, 0.2),
		scored(1, 12, 0.2, 0.3),
		{Trial: 2, State: result.StateFailed, Reason: "timeout"},
		{Trial: 3, State: result.StateRejected},
	}
	s := report.Aggregate(recs)
	if s.Trials != 4 || s.Scored != 2 || s.Failed != 1 || s.Rejected != 1 {
		t.Fatalf("counts wrong: %+v", s)
	}
	sum := s.SuccessRate + s.FailureRate + s.RejectionRate
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("rates sum to %v, want 1", sum)
	}
	if s.FailureReasons["timeout"] != 1 {
		t.Errorf("timeout reason not counted: %+v", s.FailureReasons)
	}
	pos := s.Metrics["position_err"]
	if math.Abs(pos.Mean-0.15) > 1e-12 {
		t.Errorf("mean position error %v, want 0.15", pos.Mean)
	}
	if pos.Percentiles["p50"] == 0 {
		t.Error("p50 missing")
	}
}

func TestAggregateAllFailedStillSummarizes(t *testing.T) {
	recs := []*result.Record{
		{Trial: 0, State: result.StateFailed, Reason: "too few feature correspondences"},
		{Trial: 1, State: result.StateFailed, Reason: "too few feature correspondences"},
	}
	s := report.Aggregate(recs)
	if s.FailureRate != 1 {
		t.Fatalf("failure rate %v, want 1", s.FailureRate)
	}
	if len(s.Metrics) != 0 {
		t.Error("no metrics expected without scored trials")
	}
	var buf bytes.Buffer
	if err := report.Write(s, "table", &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "failure rate: 100.0%") {
		t.Errorf("table output missing failure rate: %s", buf.String())
	}
}

func TestGenerateFromRunDir(t *testing.T) {
	runDir := t.TempDir()
	recs := []*result.Record{
		scored(0, 8, 0.05, 0.1),
		scored(1, 9, 0.07, 0.15),
		{Trial: 2, State: result.StateRejected},
	}
	for _, rec := range recs {
		if err := result.WriteRecord(result.TrialDir(runDir, rec.Trial), rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := report.Generate(runDir, "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var s report.Summary
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatalf("parsing summary json: %v", err)
	}
	if s.Trials != 3 || s.Scored != 2 || s.Rejected != 1 {
		t.Fatalf("summary counts wrong: %+v", s)
	}
}

func TestWriteMarkdown(t *testing.T) {
	s := report.Aggregate([]*result.Record{scored(0, 10, 0.1, 0.2)})
	var buf bytes.Buffer
	if err := report.Write(s, "markdown", &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "| position_err |") {
		t.Errorf("markdown missing metric row: %s", out)
	}
	for _, r := range out {
		if r > 127 {
			t.Fatalf("markdown output contains non-ASCII rune %q: %s", r, out)
		}
	}
}

func TestWriteChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.html")
	recs := []*result.Record{
		scored(0, 8, 0.05, 0.1),
		scored(1, 20, 0.2, 0.4),
		{Trial: 2, State: result.StateFailed, Reason: "timeout"},
	}
	if err := report.WriteChart(recs, "test run", path); err != nil {
		t.Fatalf("WriteChart: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading chart: %v", err)
	}
	if !bytes.Contains(data, []byte("echarts")) {
		t.Error("chart output does not look like an echarts page")
	}
}
