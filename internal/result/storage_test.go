package result_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"

	"github.com/astroviz/navbench/internal/render"
	"github.com/astroviz/navbench/internal/result"
	"github.com/astroviz/navbench/internal/spatial"
)

func sampleRecord() *result.Record {
	truth := spatial.PoseLookAt(r3.Vector{Z: 10}, r3.Vector{}, r3.Vector{Y: 1})
	posErr := 0.012
	angErr := 0.4
	return &result.Record{
		Trial:          3,
		Seed:           77,
		State:          result.StateScored,
		Range:          10,
		PhaseDeg:       25,
		Truth:          result.NewPoseRecord(truth),
		Estimate:       result.NewPoseRecord(truth),
		Converged:      true,
		Inliers:        14,
		Confidence:     0.93,
		PositionErr:    &posErr,
		AngularErrDeg:  &angErr,
		DurationMillis: 120,
	}
}

func TestWriteAndReadRecord(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord()
	if err := result.WriteRecord(dir, rec); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	got, err := result.ReadRecord(filepath.Join(dir, "record.json"))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("record round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedRecordOmitsEstimate(t *testing.T) {
	dir := t.TempDir()
	rec := &result.Record{
		Trial:  0,
		State:  result.StateFailed,
		Reason: "too few feature correspondences",
		Truth:  sampleRecord().Truth,
	}
	if err := result.WriteRecord(dir, rec); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	got, err := result.ReadRecord(filepath.Join(dir, "record.json"))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Estimate != nil || got.PositionErr != nil {
		t.Error("failed record should carry no estimate or errors")
	}
	if got.Success() {
		t.Error("failed record reported success")
	}
}

func TestPoseRecordRoundTrip(t *testing.T) {
	truth := spatial.PoseLookAt(r3.Vector{X: 2, Z: 9}, r3.Vector{}, r3.Vector{Y: 1})
	got := result.NewPoseRecord(truth).Pose()
	if spatial.PositionError(got, truth) > 1e-12 {
		t.Error("position not preserved")
	}
	if spatial.OrientationError(got, truth) > 1e-9 {
		t.Error("orientation not preserved")
	}
}

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()
	runDir, err := result.CreateRunDir(base)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		t.Errorf("run directory not created: %s", runDir)
	}
	latest := filepath.Join(base, "latest")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("reading latest symlink: %v", err)
	}
	if target != runDir {
		t.Errorf("latest symlink: got %q, want %q", target, runDir)
	}
}

func TestTrialDir(t *testing.T) {
	base := t.TempDir()
	dir := result.TrialDir(base, 3)
	expected := filepath.Join(base, "trials", "trial-3")
	if dir != expected {
		t.Errorf("got %q, want %q", dir, expected)
	}
}

func TestWriteFrame(t *testing.T) {
	dir := t.TempDir()
	im := &render.Image{Width: 8, Height: 8, Pix: make([]uint8, 64)}
	for i := range im.Pix {
		im.Pix[i] = uint8(i * 4)
	}
	if err := result.WriteFrame(dir, im); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "frame.png")); err != nil {
		t.Fatalf("frame.png not written: %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := result.OpenStore(filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	runID, err := store.CreateRun("test-run", "trials: 2")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	recs := []*result.Record{sampleRecord(), {Trial: 4, State: result.StateRejected, Reason: "sample budget"}}
	for _, rec := range recs {
		if err := store.InsertRecord(runID, rec); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	got, err := store.Records(runID)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if diff := cmp.Diff(recs[0], got[0]); diff != "" {
		t.Errorf("stored record mismatch (-want +got):\n%s", diff)
	}

	runs, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID || runs[0].Name != "test-run" {
		t.Fatalf("unexpected runs listing: %+v", runs)
	}
}
