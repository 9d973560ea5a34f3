package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// DB is the SQLite audit store.
type DB struct {
	conn *sql.DB
}

const schema = `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL UNIQUE,
        source TEXT NOT NULL,
        status TEXT NOT NULL,
        records INTEGER DEFAULT 0,
        trained INTEGER DEFAULT 0,
        skipped INTEGER DEFAULT 0,
        failed INTEGER DEFAULT 0,
        duration_ms INTEGER DEFAULT 0,
        error TEXT DEFAULT '',
        started_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS model_snapshots (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        format INTEGER NOT NULL,
        segments INTEGER NOT NULL,
        blob BLOB NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        county TEXT NOT NULL,
        claim_type TEXT NOT NULL,
        target_date TEXT NOT NULL,
        predicted_count INTEGER NOT NULL,
        predicted_cost REAL NOT NULL,
        avg_cost_per_claim REAL NOT NULL,
        generation INTEGER DEFAULT 0,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS llm_usage (
        day TEXT PRIMARY KEY,
        requests INTEGER NOT NULL DEFAULT 0
    );
    `

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// TrainingRun is one row of training_runs.
type TrainingRun struct {
	RunID     string        `json:"run_id"`
	Source    string        `json:"source"`
	Status    string        `json:"status"`
	Records   int           `json:"records"`
	Trained   int           `json:"trained"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

func (d *DB) RecordTrainingRun(run TrainingRun) error {
	_, err := d.conn.Exec(`
        INSERT OR REPLACE INTO training_runs (
            run_id, source, status, records, trained, skipped, failed, duration_ms, error, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Status, run.Records, run.Trained, run.Skipped, run.Failed,
		run.Duration.Milliseconds(), run.Error, run.StartedAt.UTC(),
	)
	return err
}

// LatestTrainingRuns returns up to limit runs, newest first.
func (d *DB) LatestTrainingRuns(limit int) ([]TrainingRun, error) {
	rows, err := d.conn.Query(`
        SELECT run_id, source, status, records, trained, skipped, failed, duration_ms, error, started_at
        FROM training_runs
        ORDER BY started_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var durationMS int64
		if err := rows.Scan(&run.RunID, &run.Source, &run.Status, &run.Records, &run.Trained,
			&run.Skipped, &run.Failed, &durationMS, &run.Error, &run.StartedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Snapshot is a persisted model store blob.
type Snapshot struct {
	RunID     string
	Format    int
	Segments  int
	Blob      []byte
	CreatedAt time.Time
}

func (d *DB) SaveSnapshot(s Snapshot) error {
	if len(s.Blob) == 0 {
		return errors.New("empty snapshot blob")
	}
	_, err := d.conn.Exec(`
        INSERT INTO model_snapshots (run_id, format, segments, blob, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		s.RunID, s.Format, s.Segments, s.Blob, s.CreatedAt.UTC(),
	)
	return err
}

// LatestSnapshot returns the most recently saved snapshot or ErrNotFound.
func (d *DB) LatestSnapshot() (*Snapshot, error) {
	var s Snapshot
	err := d.conn.QueryRow(`
        SELECT run_id, format, segments, blob, created_at
        FROM model_snapshots
        ORDER BY id DESC
        LIMIT 1`).Scan(&s.RunID, &s.Format, &s.Segments, &s.Blob, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PredictionLog is one served prediction.
type PredictionLog struct {
	County          string    `json:"county"`
	ClaimType       string    `json:"claim_type"`
	TargetDate      string    `json:"target_date"`
	PredictedCount  int       `json:"predicted_count"`
	PredictedCost   float64   `json:"predicted_cost"`
	AvgCostPerClaim float64   `json:"avg_cost_per_claim"`
	Generation      uint64    `json:"generation"`
	CreatedAt       time.Time `json:"created_at"`
}

func (d *DB) LogPrediction(p PredictionLog) error {
	_, err := d.conn.Exec(`
        INSERT INTO predictions (
            county, claim_type, target_date, predicted_count, predicted_cost,
            avg_cost_per_claim, generation, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.County, p.ClaimType, p.TargetDate, p.PredictedCount, p.PredictedCost,
		p.AvgCostPerClaim, int64(p.Generation), p.CreatedAt.UTC(),
	)
	return err
}

func (d *DB) RecentPredictions(limit int) ([]PredictionLog, error) {
	rows, err := d.conn.Query(`
        SELECT county, claim_type, target_date, predicted_count, predicted_cost,
               avg_cost_per_claim, generation, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]PredictionLog, 0)
	for rows.Next() {
		var p PredictionLog
		var generation int64
		if err := rows.Scan(&p.County, &p.ClaimType, &p.TargetDate, &p.PredictedCount, &p.PredictedCost,
			&p.AvgCostPerClaim, &generation, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Generation = uint64(generation)
		logs = append(logs, p)
	}
	return logs, rows.Err()
}

// IncrementUsage adds one LLM request to day (YYYY-MM-DD) and returns the new total.
func (d *DB) IncrementUsage(day string) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(`
        INSERT INTO llm_usage (day, requests) VALUES (?, 1)
        ON CONFLICT(day) DO UPDATE SET requests = requests + 1`, day)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	var n int
	if err := tx.QueryRow(`SELECT requests FROM llm_usage WHERE day = ?`, day).Scan(&n); err != nil {
		tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

// Usage returns the LLM request count recorded for day, 0 when none.
func (d *DB) Usage(day string) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT requests FROM llm_usage WHERE day = ?`, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
