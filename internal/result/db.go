package result

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the queryable per-run record collection, a SQLite database
// alongside the per-trial JSON artifacts. A single writer goroutine is
// assumed; readers may query concurrently.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	config TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	run_id TEXT NOT NULL REFERENCES runs(id),
	trial INTEGER NOT NULL,
	state TEXT NOT NULL,
	reason TEXT,
	range_true REAL,
	position_err REAL,
	angular_err_deg REAL,
	lateral_err REAL,
	distance_err REAL,
	inliers INTEGER,
	confidence REAL,
	converged INTEGER,
	duration_ms INTEGER,
	record TEXT NOT NULL,
	PRIMARY KEY (run_id, trial)
);
`

// OpenStore opens or creates the results database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening results db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing results db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunInfo identifies one stored batch run.
type RunInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// CreateRun registers a new run and returns its ID.
func (s *Store) CreateRun(name, configYAML string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, name, config, created_at) VALUES (?, ?, ?, ?)`,
		id, name, configYAML, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()
	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var created string
		if err := rows.Scan(&r.ID, &r.Name, &created); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertRecord stores one trial outcome under a run.
func (s *Store) InsertRecord(runID string, rec *Record) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO records
		 (run_id, trial, state, reason, range_true, position_err, angular_err_deg,
		  lateral_err, distance_err, inliers, confidence, converged, duration_ms, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Trial, string(rec.State), rec.Reason, rec.Range,
		nullable(rec.PositionErr), nullable(rec.AngularErrDeg),
		nullable(rec.LateralErr), nullable(rec.DistanceErr),
		rec.Inliers, rec.Confidence, rec.Converged, rec.DurationMillis,
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("inserting record for trial %d: %w", rec.Trial, err)
	}
	return nil
}

// Records loads every record of a run in trial order.
func (s *Store) Records(runID string) ([]*Record, error) {
	rows, err := s.db.Query(`SELECT record FROM records WHERE run_id = ? ORDER BY trial`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	var recs []*Record
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, fmt.Errorf("parsing stored record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
