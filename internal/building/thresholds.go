package building

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultCrMax bounds the overlay relaxation factor Cr. The factor is
// multiplicative on C1, so values above 1 would tighten rather than relax
// the confirmation threshold; deployments that want that must raise the
// cap explicitly.
const DefaultCrMax = 1.0

// ThresholdSet holds the eight decision thresholds. All fields are in
// [0,1] except Cr which is bounded by a configured cap. A ThresholdSet is
// immutable during a run.
//
//	C1: min probability for point-level confirmation
//	C2: min fraction of confirmed points for group confirmation
//	R1: min (1-p) for point-level refutation
//	R2: min fraction of refuted points for group refutation
//	O1: min fraction of overlayed points for group confirmation
//	E1: min binary entropy for a point to count as high-entropy
//	E2: min fraction of high-entropy points to defer a group
//	Cr: multiplicative relaxation of C1 for overlayed points
type ThresholdSet struct {
	C1 float64 `json:"c1"`
	C2 float64 `json:"c2"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	O1 float64 `json:"o1"`
	E1 float64 `json:"e1"`
	E2 float64 `json:"e2"`
	Cr float64 `json:"cr"`
}

// DefaultThresholds returns a conservative threshold set suitable as a
// starting point before optimization.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		C1: 0.70,
		C2: 0.50,
		R1: 0.70,
		R2: 0.80,
		O1: 0.50,
		E1: 0.90,
		E2: 0.50,
		Cr: 1.00,
	}
}

// Validate checks every field against its declared domain. crMax bounds
// Cr; pass DefaultCrMax unless the deployment overrides it.
func (t ThresholdSet) Validate(crMax float64) error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("threshold %s must be in [0,1], got %v", name, v)
		}
		return nil
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"c1", t.C1}, {"c2", t.C2}, {"r1", t.R1}, {"r2", t.R2},
		{"o1", t.O1}, {"e1", t.E1}, {"e2", t.E2},
	} {
		if err := check(f.name, f.value); err != nil {
			return err
		}
	}
	if math.IsNaN(t.Cr) || t.Cr < 0 || t.Cr > crMax {
		return fmt.Errorf("threshold cr must be in [0,%v], got %v", crMax, t.Cr)
	}
	return nil
}

// ThresholdRecordVersion is the current schema version of persisted
// threshold records. Loading rejects any other version.
const ThresholdRecordVersion = 1

// ThresholdRecord is the persisted, human-readable form of a ThresholdSet.
// Records are versioned so cross-version incompatibilities surface as
// validation errors instead of silent misuse.
type ThresholdRecord struct {
	Version    int          `json:"version"`
	CreatedAt  time.Time    `json:"created_at"`
	Label      string       `json:"label,omitempty"`
	Thresholds ThresholdSet `json:"thresholds"`
}

// NewThresholdRecord wraps a ThresholdSet in a current-version record.
func NewThresholdRecord(ts ThresholdSet, label string) ThresholdRecord {
	return ThresholdRecord{
		Version:    ThresholdRecordVersion,
		CreatedAt:  time.Now().UTC(),
		Label:      label,
		Thresholds: ts,
	}
}

// SaveThresholdRecord writes a record as indented JSON.
func SaveThresholdRecord(path string, rec ThresholdRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal threshold record: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write threshold record: %w", err)
	}
	return nil
}

// LoadThresholdRecord reads and validates a persisted threshold record.
// Unknown versions and out-of-domain fields are load-time failures.
func LoadThresholdRecord(path string, crMax float64) (ThresholdRecord, error) {
	var rec ThresholdRecord
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return rec, fmt.Errorf("read threshold record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse threshold record: %w", err)
	}
	if rec.Version != ThresholdRecordVersion {
		return rec, fmt.Errorf("unsupported threshold record version %d (want %d)", rec.Version, ThresholdRecordVersion)
	}
	if err := rec.Thresholds.Validate(crMax); err != nil {
		return rec, fmt.Errorf("invalid threshold record %s: %w", cleanPath, err)
	}
	return rec, nil
}
