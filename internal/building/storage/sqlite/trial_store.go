package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ardoise-data/building.review/internal/building"
	"github.com/ardoise-data/building.review/internal/building/optimize"
)

// TrialRow is one persisted trial of an optimization run.
type TrialRow struct {
	TrialID    string                `json:"trial_id"`
	RunID      string                `json:"run_id"`
	Seq        int                   `json:"seq"`
	Thresholds building.ThresholdSet `json:"thresholds"`
	Automation float64               `json:"automation"`
	Precision  float64               `json:"precision"`
	Recall     float64               `json:"recall"`
	Penalty    float64               `json:"penalty"`
	Status     string                `json:"status"`
	Error      string                `json:"error,omitempty"`
	OnFront    bool                  `json:"on_front"`
}

// TrialStore provides persistence for optimization trials.
type TrialStore struct {
	db *sql.DB
}

// NewTrialStore creates a TrialStore backed by the given database.
func NewTrialStore(db *sql.DB) *TrialStore {
	return &TrialStore{db: db}
}

// InsertRun persists a run's full trial history in one transaction,
// marking the trials that survived on the Pareto front.
func (s *TrialStore) InsertRun(runID string, history []optimize.Trial, front *optimize.Front) error {
	onFront := make(map[int]bool)
	for _, t := range front.Trials() {
		onFront[t.Seq] = true
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin trial insert: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO optimization_trials (
				trial_id, run_id, seq, thresholds_json, automation, precision,
				recall, penalty, status, error, on_front
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare trial insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range history {
			thresholds, err := json.Marshal(t.Thresholds)
			if err != nil {
				return fmt.Errorf("marshal trial %d thresholds: %w", t.Seq, err)
			}
			front := 0
			if onFront[t.Seq] {
				front = 1
			}
			if _, err := stmt.Exec(
				uuid.New().String(), runID, t.Seq, string(thresholds),
				t.Objectives.Automation, t.Objectives.Precision, t.Objectives.Recall,
				t.Penalty, string(t.Status), t.Err, front,
			); err != nil {
				return fmt.Errorf("insert trial %d: %w", t.Seq, err)
			}
		}
		return tx.Commit()
	})
}

// ListByRun returns every trial of a run in sequence order.
func (s *TrialStore) ListByRun(runID string) ([]*TrialRow, error) {
	return s.queryTrials(`
		SELECT trial_id, run_id, seq, thresholds_json, automation, precision,
		       recall, penalty, status, error, on_front
		FROM optimization_trials
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
}

// FrontByRun returns only the trials that finished on the Pareto front.
func (s *TrialStore) FrontByRun(runID string) ([]*TrialRow, error) {
	return s.queryTrials(`
		SELECT trial_id, run_id, seq, thresholds_json, automation, precision,
		       recall, penalty, status, error, on_front
		FROM optimization_trials
		WHERE run_id = ? AND on_front = 1
		ORDER BY seq ASC`, runID)
}

func (s *TrialStore) queryTrials(query string, args ...any) ([]*TrialRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var trials []*TrialRow
	for rows.Next() {
		var t TrialRow
		var thresholdsJSON string
		var onFront int
		if err := rows.Scan(
			&t.TrialID, &t.RunID, &t.Seq, &thresholdsJSON, &t.Automation, &t.Precision,
			&t.Recall, &t.Penalty, &t.Status, &t.Error, &onFront,
		); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		if err := json.Unmarshal([]byte(thresholdsJSON), &t.Thresholds); err != nil {
			return nil, fmt.Errorf("unmarshal trial %d thresholds: %w", t.Seq, err)
		}
		t.OnFront = onFront != 0
		trials = append(trials, &t)
	}
	return trials, rows.Err()
}
