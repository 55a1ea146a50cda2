package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ardoise-data/building.review/internal/building/optimize"
)

// ReportRow is one persisted evaluation of a threshold record against a
// held-out dataset.
type ReportRow struct {
	ReportID      string           `json:"report_id"`
	RunID         string           `json:"run_id,omitempty"`
	RecordID      string           `json:"record_id,omitempty"`
	DatasetPath   string           `json:"dataset_path"`
	DatasetDigest string           `json:"dataset_digest,omitempty"`
	Metrics       optimize.Metrics `json:"metrics"`
	PointIoU      float64          `json:"point_iou"`
	CreatedAt     int64            `json:"created_at"`
}

// ReportStore provides persistence for evaluation reports.
type ReportStore struct {
	db *sql.DB
}

// NewReportStore creates a ReportStore backed by the given database.
func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// Insert persists a report. If ReportID is empty, a UUID is generated.
func (s *ReportStore) Insert(row *ReportRow) error {
	if row.ReportID == "" {
		row.ReportID = uuid.New().String()
	}
	if row.CreatedAt == 0 {
		row.CreatedAt = time.Now().UnixNano()
	}

	metrics, err := json.Marshal(row.Metrics)
	if err != nil {
		return fmt.Errorf("marshal report metrics: %w", err)
	}
	nullable := func(s string) interface{} {
		if s == "" {
			return nil
		}
		return s
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO evaluation_reports (
				report_id, run_id, record_id, dataset_path, dataset_digest,
				metrics_json, point_iou, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ReportID, nullable(row.RunID), nullable(row.RecordID),
			row.DatasetPath, row.DatasetDigest, string(metrics), row.PointIoU, row.CreatedAt,
		)
		return err
	})
}

// Get returns a single report by ID.
func (s *ReportStore) Get(reportID string) (*ReportRow, error) {
	row := s.db.QueryRow(`
		SELECT report_id, run_id, record_id, dataset_path, dataset_digest,
		       metrics_json, point_iou, created_at
		FROM evaluation_reports
		WHERE report_id = ?`, reportID)

	rep, err := scanReport(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return rep, nil
}

// List returns reports newest first.
func (s *ReportStore) List(limit int) ([]*ReportRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT report_id, run_id, record_id, dataset_path, dataset_digest,
		       metrics_json, point_iou, created_at
		FROM evaluation_reports
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []*ReportRow
	for rows.Next() {
		rep, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func scanReport(scan func(dest ...any) error) (*ReportRow, error) {
	var r ReportRow
	var runID, recordID sql.NullString
	var metricsJSON string
	err := scan(&r.ReportID, &runID, &recordID, &r.DatasetPath, &r.DatasetDigest,
		&metricsJSON, &r.PointIoU, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if runID.Valid {
		r.RunID = runID.String
	}
	if recordID.Valid {
		r.RecordID = recordID.String
	}
	if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal report metrics: %w", err)
	}
	return &r, nil
}
