package optimize

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardoise-data/building.review/internal/building"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tile.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadTileCSV(t *testing.T) {
	path := writeTile(t, strings.Join([]string{
		"x,y,z,candidate,overlay,probability,truth",
		"1.5,2.5,10,1,0,0.9,tp",
		"3,4,11,1,1,0.1,fp",
		"5,6,12,0,0,,",
	}, "\n")+"\n")

	ds, err := ReadTileCSV(path)
	require.NoError(t, err)
	require.Len(t, ds.Points, 3)

	assert.Equal(t, LabelledPoint{X: 1.5, Y: 2.5, Z: 10, Probability: 0.9, Candidate: true, Truth: TruthTruePositive}, ds.Points[0])
	assert.True(t, ds.Points[1].Overlay)
	assert.Equal(t, TruthFalsePositive, ds.Points[1].Truth)
	assert.True(t, math.IsNaN(ds.Points[2].Probability), "empty probability reads as NaN")
	assert.Equal(t, TruthNone, ds.Points[2].Truth)
	assert.True(t, ds.HasGroundTruth())
}

func TestReadTileCSVWithoutTruthColumn(t *testing.T) {
	path := writeTile(t, strings.Join([]string{
		"x,y,z,candidate,overlay,probability",
		"1,2,3,1,0,0.8",
	}, "\n")+"\n")

	ds, err := ReadTileCSV(path)
	require.NoError(t, err)
	require.Len(t, ds.Points, 1)
	assert.False(t, ds.HasGroundTruth())
}

func TestReadTileCSVRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"wrong header":   "a,b,c,d,e,f\n1,2,3,1,0,0.5\n",
		"bad truth code": "x,y,z,candidate,overlay,probability,truth\n1,2,3,1,0,0.5,maybe\n",
		"bad flag":       "x,y,z,candidate,overlay,probability\n1,2,3,yes?,0,0.5\n",
		"bad float":      "x,y,z,candidate,overlay,probability\noops,2,3,1,0,0.5\n",
		"short record":   "x,y,z,candidate,overlay,probability\n1,2,3\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadTileCSV(writeTile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestWriteLabeledTileCSVRoundTrip(t *testing.T) {
	arena := building.NewPointArena(2)
	arena.Add(building.Point{X: 1, Y: 2, Z: 3, Probability: 0.9, IsCandidate: true, Label: building.Confirmed, Detail: building.DetailConfirmed, GroupID: 1})
	arena.Add(building.Point{X: 4, Y: 5, Z: 6, Probability: math.NaN(), Label: building.Unsure, ReviewID: 2})

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteLabeledTileCSV(path, arena))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "x,y,z,candidate,overlay,probability,label,detail,group,review", lines[0])
	assert.Equal(t, "1,2,3,1,0,0.9,confirmed,ia-confirmed,1,0", lines[1])
	// Missing probability round-trips as an empty field.
	assert.Contains(t, lines[2], ",,")
	assert.Contains(t, lines[2], "unsure")
}

func TestDeriveGroupTruth(t *testing.T) {
	mf := DefaultMinFrac()

	all := func(n int, truth GroundTruth) []GroundTruth {
		out := make([]GroundTruth, n)
		for i := range out {
			out[i] = truth
		}
		return out
	}

	assert.Equal(t, GroupTruthBuilding, deriveGroupTruth(all(20, TruthTruePositive), mf))
	assert.Equal(t, GroupTruthNotBuilding, deriveGroupTruth(all(20, TruthFalsePositive), mf))

	// 1 of 20 true positives is exactly 5%: not below the floor, so ambiguous.
	mixed := all(20, TruthFalsePositive)
	mixed[0] = TruthTruePositive
	assert.Equal(t, GroupTruthUnsure, deriveGroupTruth(mixed, mf))

	// 19 of 20 is 95%: at the Building cut point.
	mixed = all(20, TruthTruePositive)
	mixed[0] = TruthFalsePositive
	assert.Equal(t, GroupTruthBuilding, deriveGroupTruth(mixed, mf))
}

func TestBuildGroupSamples(t *testing.T) {
	policy := building.AdjacencyPolicy{Radius: 1.5}

	ds := &Dataset{Points: []LabelledPoint{
		// Cluster A: two true-positive candidates.
		{X: 0, Y: 0, Probability: 0.9, Candidate: true, Truth: TruthTruePositive},
		{X: 1, Y: 0, Probability: 0.8, Candidate: true, Overlay: true, Truth: TruthTruePositive},
		// Cluster B: two false-positive candidates far away.
		{X: 50, Y: 50, Probability: 0.2, Candidate: true, Truth: TruthFalsePositive},
		{X: 51, Y: 50, Probability: 0.1, Candidate: true, Truth: TruthFalsePositive},
		// Singleton candidate, dropped by minGroupPoints.
		{X: 100, Y: 100, Probability: 0.6, Candidate: true, Truth: TruthTruePositive},
		// Non-candidate, never clustered.
		{X: 0.5, Y: 0.5, Probability: 0.99, Truth: TruthFalseNegative},
	}}

	samples, err := BuildGroupSamples(ds, policy, 2, DefaultMinFrac())
	require.NoError(t, err)
	require.Len(t, samples, 2)

	// Groups come back in centroid order: cluster A first.
	assert.Equal(t, GroupTruthBuilding, samples[0].Truth)
	assert.Equal(t, []float64{0.9, 0.8}, samples[0].Probabilities)
	assert.Equal(t, []bool{false, true}, samples[0].Overlays)
	assert.Equal(t, GroupTruthNotBuilding, samples[1].Truth)
}

func TestBuildGroupSamplesFailures(t *testing.T) {
	policy := building.AdjacencyPolicy{Radius: 1.5}
	mf := DefaultMinFrac()

	_, err := BuildGroupSamples(&Dataset{}, policy, 2, mf)
	assert.Error(t, err, "empty dataset")

	noTruth := &Dataset{Points: []LabelledPoint{{X: 0, Y: 0, Probability: 0.9, Candidate: true}}}
	_, err = BuildGroupSamples(noTruth, policy, 2, mf)
	assert.Error(t, err, "no ground truth")

	noCandidates := &Dataset{Points: []LabelledPoint{{X: 0, Y: 0, Probability: 0.9, Truth: TruthFalseNegative}}}
	_, err = BuildGroupSamples(noCandidates, policy, 2, mf)
	assert.Error(t, err, "no candidates")

	onlySingletons := &Dataset{Points: []LabelledPoint{{X: 0, Y: 0, Probability: 0.9, Candidate: true, Truth: TruthTruePositive}}}
	_, err = BuildGroupSamples(onlySingletons, policy, 2, mf)
	assert.Error(t, err, "no group reaches the size floor")
}
