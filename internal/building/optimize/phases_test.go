package optimize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardoise-data/building.review/internal/building"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelledTile = `x,y,z,candidate,overlay,probability,truth
0,0,10,1,0,0.95,tp
0.5,0,10,1,0,0.95,tp
1,0,10.5,1,0,0.95,tp
30,30,2,1,0,0.05,fp
30.5,30,2,1,0,0.05,fp
31,30,2,1,0,0.05,fp
1.5,0,10,0,0,0.97,fn
`

func writePhaseTile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(labelledTile), 0644))
	return path
}

func phasePolicy() building.AdjacencyPolicy {
	return building.AdjacencyPolicy{Radius: 1.0}
}

func TestPrepare(t *testing.T) {
	dir := t.TempDir()
	blob := filepath.Join(dir, "train.bvd")

	ds, err := Prepare(PrepareConfig{
		Tiles:  []string{writePhaseTile(t, dir, "a.csv"), writePhaseTile(t, dir, "b.csv")},
		Output: blob,
	})
	require.NoError(t, err)
	assert.Len(t, ds.Points, 14, "both tiles merged")

	loaded, err := ReadDatasetFile(blob)
	require.NoError(t, err)
	assert.Len(t, loaded.Points, 14)
}

func TestPrepareRejectsUnlabelledTiles(t *testing.T) {
	dir := t.TempDir()
	unlabelled := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(unlabelled, []byte("x,y,z,candidate,overlay,probability\n1,2,3,1,0,0.9\n"), 0644))

	_, err := Prepare(PrepareConfig{Tiles: []string{unlabelled}, Output: filepath.Join(dir, "out.bvd")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ground truth")

	_, err = Prepare(PrepareConfig{Output: filepath.Join(dir, "out.bvd")})
	assert.Error(t, err, "no tiles")
}

func TestOptimizeEvaluateUpdate(t *testing.T) {
	dir := t.TempDir()
	blob := filepath.Join(dir, "train.bvd")
	_, err := Prepare(PrepareConfig{
		Tiles:  []string{writePhaseTile(t, dir, "tile.csv")},
		Output: blob,
	})
	require.NoError(t, err)

	runner := DefaultConfig()
	runner.Trials = 128
	runner.Workers = 2
	runner.Sampler = "uniform"

	thresholds := filepath.Join(dir, "thresholds.json")
	frontPath := filepath.Join(dir, "front.json")
	res, err := Optimize(context.Background(), OptimizeConfig{
		Dataset:        blob,
		Output:         thresholds,
		FrontOutput:    frontPath,
		Label:          "test-run",
		Runner:         runner,
		Policy:         phasePolicy(),
		MinGroupPoints: 2,
		MinFrac:        DefaultMinFrac(),
	})
	require.NoError(t, err)
	assert.Greater(t, res.Front.Size(), 0)
	assert.Len(t, res.History, 128)
	assert.Equal(t, res.Front.Size(), res.Summary.Trials)

	// The benchmark is separable, so the chosen trial meets the floors.
	assert.LessOrEqual(t, runner.Constraints.Penalty(res.Best.Objectives), 0.0)

	rec, err := building.LoadThresholdRecord(thresholds, building.DefaultCrMax)
	require.NoError(t, err)
	assert.Equal(t, "test-run", rec.Label)
	assert.Equal(t, res.Best.Thresholds, rec.Thresholds)

	frontRaw, err := os.ReadFile(frontPath)
	require.NoError(t, err)
	assert.Contains(t, string(frontRaw), `"trials"`)

	reportPath := filepath.Join(dir, "report.json")
	report, err := Evaluate(EvaluateConfig{
		Dataset:        blob,
		Thresholds:     thresholds,
		Output:         reportPath,
		Options:        building.DefaultOptions(),
		Policy:         phasePolicy(),
		MinGroupPoints: 2,
		MinFrac:        DefaultMinFrac(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Metrics.Groups)
	assert.Greater(t, report.PointIoU.Value, 0.0)
	assert.FileExists(t, reportPath)

	outTile := filepath.Join(dir, "labelled.csv")
	summary, err := Update(UpdateConfig{
		Input:      writePhaseTile(t, dir, "prod.csv"),
		Output:     outTile,
		Thresholds: thresholds,
		Options:    building.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Points)
	assert.Equal(t, 6, summary.Candidates)

	raw, err := os.ReadFile(outTile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 8, "header plus one row per point")
	assert.True(t, strings.HasPrefix(lines[0], "x,y,z,"))
}

func TestEvaluateMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	_, err := Evaluate(EvaluateConfig{
		Dataset:    filepath.Join(dir, "missing.bvd"),
		Thresholds: filepath.Join(dir, "missing.json"),
	})
	assert.Error(t, err)
}

func TestUpdateMissingThresholds(t *testing.T) {
	dir := t.TempDir()
	_, err := Update(UpdateConfig{
		Input:      writePhaseTile(t, dir, "tile.csv"),
		Output:     filepath.Join(dir, "out.csv"),
		Thresholds: filepath.Join(dir, "missing.json"),
	})
	assert.Error(t, err)
}
