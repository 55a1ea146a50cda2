package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ardoise-data/building.review/internal/building"
)

// ThresholdRow mirrors a versioned building.ThresholdRecord into the
// runs database, optionally linked to the run that produced it.
type ThresholdRow struct {
	RecordID   string                `json:"record_id"`
	RunID      string                `json:"run_id,omitempty"`
	Version    int                   `json:"version"`
	Label      string                `json:"label,omitempty"`
	Thresholds building.ThresholdSet `json:"thresholds"`
	CreatedAt  int64                 `json:"created_at"`
}

// Record converts the row back into the file-format record.
func (r *ThresholdRow) Record() building.ThresholdRecord {
	return building.ThresholdRecord{
		Version:    r.Version,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
		Label:      r.Label,
		Thresholds: r.Thresholds,
	}
}

// ThresholdStore provides persistence for threshold records.
type ThresholdStore struct {
	db *sql.DB
}

// NewThresholdStore creates a ThresholdStore backed by the given database.
func NewThresholdStore(db *sql.DB) *ThresholdStore {
	return &ThresholdStore{db: db}
}

// Insert persists a threshold record. If RecordID is empty, a UUID is
// generated. Rejects out-of-domain thresholds the same way file loading
// does.
func (s *ThresholdStore) Insert(row *ThresholdRow) error {
	if err := row.Thresholds.Validate(building.DefaultCrMax); err != nil {
		return fmt.Errorf("threshold record: %w", err)
	}
	if row.RecordID == "" {
		row.RecordID = uuid.New().String()
	}
	if row.Version == 0 {
		row.Version = building.ThresholdRecordVersion
	}
	if row.CreatedAt == 0 {
		row.CreatedAt = time.Now().UnixNano()
	}

	thresholds, err := json.Marshal(row.Thresholds)
	if err != nil {
		return fmt.Errorf("marshal thresholds: %w", err)
	}
	var runID interface{}
	if row.RunID != "" {
		runID = row.RunID
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO threshold_records (
				record_id, run_id, version, label, thresholds_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			row.RecordID, runID, row.Version, row.Label, string(thresholds), row.CreatedAt,
		)
		return err
	})
}

// Get returns a single threshold record by ID.
func (s *ThresholdStore) Get(recordID string) (*ThresholdRow, error) {
	row := s.db.QueryRow(`
		SELECT record_id, run_id, version, label, thresholds_json, created_at
		FROM threshold_records
		WHERE record_id = ?`, recordID)

	rec, err := scanThresholdRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("threshold record %s: %w", recordID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan threshold record: %w", err)
	}
	return rec, nil
}

// Latest returns the most recently created threshold record.
func (s *ThresholdStore) Latest() (*ThresholdRow, error) {
	row := s.db.QueryRow(`
		SELECT record_id, run_id, version, label, thresholds_json, created_at
		FROM threshold_records
		ORDER BY created_at DESC
		LIMIT 1`)

	rec, err := scanThresholdRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no threshold records: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan threshold record: %w", err)
	}
	return rec, nil
}

// List returns threshold records newest first.
func (s *ThresholdStore) List(limit int) ([]*ThresholdRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT record_id, run_id, version, label, thresholds_json, created_at
		FROM threshold_records
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query threshold records: %w", err)
	}
	defer rows.Close()

	var records []*ThresholdRow
	for rows.Next() {
		rec, err := scanThresholdRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan threshold record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanThresholdRow(scan func(dest ...any) error) (*ThresholdRow, error) {
	var r ThresholdRow
	var runID sql.NullString
	var thresholdsJSON string
	err := scan(&r.RecordID, &runID, &r.Version, &r.Label, &thresholdsJSON, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if runID.Valid {
		r.RunID = runID.String
	}
	if err := json.Unmarshal([]byte(thresholdsJSON), &r.Thresholds); err != nil {
		return nil, fmt.Errorf("unmarshal thresholds: %w", err)
	}
	return &r, nil
}
