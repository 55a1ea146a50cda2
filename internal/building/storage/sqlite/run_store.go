package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// OptimizationRun is one persisted threshold search.
type OptimizationRun struct {
	RunID         string          `json:"run_id"`
	Label         string          `json:"label,omitempty"`
	DatasetPath   string          `json:"dataset_path"`
	DatasetDigest string          `json:"dataset_digest,omitempty"`
	Seed          int64           `json:"seed"`
	Sampler       string          `json:"sampler"`
	TrialBudget   int             `json:"trial_budget"`
	Status        string          `json:"status"`
	SummaryJSON   json.RawMessage `json:"summary_json,omitempty"`
	StartedAt     int64           `json:"started_at"`
	FinishedAt    int64           `json:"finished_at,omitempty"`
}

// RunStore provides persistence for optimization runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *OptimizationRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	var summaryStr interface{}
	if len(run.SummaryJSON) > 0 {
		summaryStr = string(run.SummaryJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO optimization_runs (
				run_id, label, dataset_path, dataset_digest, seed, sampler,
				trial_budget, status, summary_json, started_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Label, run.DatasetPath, run.DatasetDigest, run.Seed, run.Sampler,
			run.TrialBudget, run.Status, summaryStr, run.StartedAt,
		)
		return err
	})
}

// Finish marks a run finished (or failed) and stores the front summary.
func (s *RunStore) Finish(runID, status string, summary json.RawMessage) error {
	var summaryStr interface{}
	if len(summary) > 0 {
		summaryStr = string(summary)
	}
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE optimization_runs
			SET status = ?, summary_json = ?, finished_at = ?
			WHERE run_id = ?`,
			status, summaryStr, time.Now().UnixNano(), runID)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*OptimizationRun, error) {
	row := s.db.QueryRow(`
		SELECT run_id, label, dataset_path, dataset_digest, seed, sampler,
		       trial_budget, status, summary_json, started_at, finished_at
		FROM optimization_runs
		WHERE run_id = ?`, runID)

	run, err := scanRun(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(limit int) ([]*OptimizationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, label, dataset_path, dataset_digest, seed, sampler,
		       trial_budget, status, summary_json, started_at, finished_at
		FROM optimization_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*OptimizationRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scan func(dest ...any) error) (*OptimizationRun, error) {
	var r OptimizationRun
	var summaryStr sql.NullString
	var finishedAt sql.NullInt64
	err := scan(
		&r.RunID, &r.Label, &r.DatasetPath, &r.DatasetDigest, &r.Seed, &r.Sampler,
		&r.TrialBudget, &r.Status, &summaryStr, &r.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if summaryStr.Valid {
		r.SummaryJSON = json.RawMessage(summaryStr.String)
	}
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Int64
	}
	return &r, nil
}
