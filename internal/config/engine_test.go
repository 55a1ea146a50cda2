package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardoise-data/building.review/internal/building"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadEngineConfig(t *testing.T) {
	path := writeConfig(t, "engine.json", `{
		"candidate_radius": 2.5,
		"min_group_points": 3,
		"completion_min_probability": 0.8,
		"optimizer_trials": 1000,
		"optimizer_sampler": "uniform",
		"optimizer_time_budget": "30m",
		"min_precision": 0.995,
		"runs_db_path": "/var/lib/review/runs.db",
		"listen_addr": ":9090",
		"admin_routes": true
	}`)

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)

	opts := cfg.GetPipelineOptions()
	assert.Equal(t, 2.5, opts.CandidatePolicy.Radius)
	assert.Equal(t, 3, opts.MinGroupPoints)
	assert.Equal(t, 0.8, opts.Completion.MinProbability)

	// Unset fields keep engine defaults.
	defaults := building.DefaultOptions()
	assert.Equal(t, defaults.CandidatePolicy.VerticalTolerance, opts.CandidatePolicy.VerticalTolerance)
	assert.Equal(t, defaults.Completion.Policy.Radius, opts.Completion.Policy.Radius)

	rcfg := cfg.GetOptimizerConfig()
	assert.Equal(t, 1000, rcfg.Trials)
	assert.Equal(t, "uniform", rcfg.Sampler)
	assert.Equal(t, 30*time.Minute, rcfg.TimeBudget)
	assert.Equal(t, 0.995, rcfg.Constraints.MinPrecision)

	assert.Equal(t, "/var/lib/review/runs.db", cfg.GetRunsDBPath())
	assert.Equal(t, ":9090", cfg.GetListenAddr())
	assert.True(t, cfg.GetAdminRoutes())
}

func TestEngineConfigDefaults(t *testing.T) {
	cfg := EmptyEngineConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, building.DefaultOptions(), cfg.GetPipelineOptions())
	assert.Equal(t, time.Duration(0), cfg.GetOptimizerTimeBudget())
	assert.Equal(t, "runs.db", cfg.GetRunsDBPath())
	assert.Equal(t, "thresholds.json", cfg.GetThresholdsPath())
	assert.Equal(t, "", cfg.GetOverlayPath())
	assert.Equal(t, ":8080", cfg.GetListenAddr())
	assert.False(t, cfg.GetAdminRoutes())
}

func TestLoadEngineConfigRejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "engine.yaml", "listen_addr: :9090\n")
	_, err := LoadEngineConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestLoadEngineConfigMissingFile(t *testing.T) {
	_, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadEngineConfigMalformed(t *testing.T) {
	path := writeConfig(t, "engine.json", "{not json")
	_, err := LoadEngineConfig(path)
	assert.Error(t, err)
}

func TestEngineConfigValidate(t *testing.T) {
	ptrF := func(v float64) *float64 { return &v }
	ptrI := func(v int) *int { return &v }
	ptrS := func(v string) *string { return &v }

	cases := map[string]EngineConfig{
		"negative radius":     {CandidateRadius: ptrF(-1)},
		"zero group points":   {MinGroupPoints: ptrI(0)},
		"probability above 1": {CompletionMinProbability: ptrF(1.5)},
		"negative trials":     {OptimizerTrials: ptrI(-1)},
		"zero workers":        {OptimizerWorkers: ptrI(0)},
		"unknown sampler":     {OptimizerSampler: ptrS("annealing")},
		"bad time budget":     {OptimizerTimeBudget: ptrS("soon")},
		"floor above 1":       {MinRecall: ptrF(1.2)},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}
