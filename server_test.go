package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardoise-data/building.review/db"
	"github.com/ardoise-data/building.review/internal/building"
	"github.com/ardoise-data/building.review/internal/building/optimize"
	storage "github.com/ardoise-data/building.review/internal/building/storage/sqlite"
	"github.com/ardoise-data/building.review/internal/config"
)

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "runs.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewServer(database, config.EmptyEngineConfig()), database
}

func seedRun(t *testing.T, database *db.DB) *storage.OptimizationRun {
	t.Helper()
	run := &storage.OptimizationRun{
		Label:       "nightly",
		DatasetPath: "dataset.bvd",
		Seed:        7,
		Sampler:     "evolutionary",
		TrialBudget: 2,
	}
	require.NoError(t, database.Runs.Insert(run))

	trials := []optimize.Trial{
		{
			Seq:        0,
			Thresholds: building.DefaultThresholds(),
			Objectives: optimize.Objectives{Automation: 0.6, Precision: 0.99, Recall: 0.99},
			Status:     optimize.TrialOK,
		},
		{
			Seq:        1,
			Thresholds: building.DefaultThresholds(),
			Objectives: optimize.Objectives{Automation: 0.4, Precision: 0.5, Recall: 0.5},
			Status:     optimize.TrialOK,
		},
	}
	front := &optimize.Front{}
	front.Add(trials[0])
	front.Add(trials[1])
	require.NoError(t, database.Trials.InsertRun(run.RunID, trials, front))
	return run
}

func TestServerRuns(t *testing.T) {
	srv, database := setupTestServer(t)
	run := seedRun(t, database)
	mux := srv.ServeMux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []*storage.OptimizationRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/run?id="+run.RunID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/run?id=nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/run", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServerTrialsAndFront(t *testing.T) {
	srv, database := setupTestServer(t)
	run := seedRun(t, database)
	mux := srv.ServeMux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trials?run="+run.RunID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var trials []*storage.TrialRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trials))
	assert.Len(t, trials, 2)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/front?run="+run.RunID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var front []*storage.TrialRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &front))
	assert.Len(t, front, 2)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/front.html?run="+run.RunID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "echarts")

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/history.html?run="+run.RunID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Trial History")

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trials", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServerThresholdsAndReports(t *testing.T) {
	srv, database := setupTestServer(t)
	mux := srv.ServeMux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/thresholds/latest", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	row := &storage.ThresholdRow{Label: "prod", Thresholds: building.DefaultThresholds()}
	require.NoError(t, database.Thresholds.Insert(row))
	require.NoError(t, database.Reports.Insert(&storage.ReportRow{
		DatasetPath: "holdout.bvd",
		PointIoU:    0.8,
	}))

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/thresholds/latest", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var latest storage.ThresholdRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
	assert.Equal(t, row.RecordID, latest.RecordID)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/thresholds", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var reports []*storage.ReportRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reports))
	assert.Len(t, reports, 1)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?limit=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServerConfig(t *testing.T) {
	srv, _ := setupTestServer(t)
	mux := srv.ServeMux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "optimizer")
}

func TestLoadConfigDefaultsWhenUnset(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.GetListenAddr())

	path := filepath.Join(t.TempDir(), "engine.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_addr": ":9090"}`), 0644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.GetListenAddr())
}
