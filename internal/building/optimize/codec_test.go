package optimize

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	// Probabilities chosen to be exact in float32.
	return &Dataset{Points: []LabelledPoint{
		{X: 1.5, Y: -2.25, Z: 10, Probability: 0.5, Candidate: true, Overlay: false, Truth: TruthTruePositive},
		{X: 0, Y: 0, Z: 0, Probability: 0.25, Candidate: true, Overlay: true, Truth: TruthFalsePositive},
		{X: -7, Y: 3, Z: 1.125, Probability: 0.75, Candidate: false, Overlay: false, Truth: TruthFalseNegative},
		{X: 100, Y: 200, Z: 300, Probability: math.NaN(), Candidate: true, Overlay: false, Truth: TruthNone},
	}}
}

func TestDatasetRoundTrip(t *testing.T) {
	ds := sampleDataset()
	blob := EncodeDataset(ds)
	require.Len(t, blob, 8+4*datasetRecordLen)

	got, err := DecodeDataset(blob)
	require.NoError(t, err)
	require.Len(t, got.Points, 4)

	// NaN markers survive the float32 round trip.
	assert.True(t, math.IsNaN(got.Points[3].Probability))

	opts := cmp.Options{
		cmp.Comparer(func(a, b float64) bool {
			if math.IsNaN(a) && math.IsNaN(b) {
				return true
			}
			return a == b
		}),
	}
	if diff := cmp.Diff(ds.Points, got.Points, opts); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDatasetRejectsBadMagic(t *testing.T) {
	blob := EncodeDataset(sampleDataset())
	blob[0] = 'X'
	_, err := DecodeDataset(blob)
	assert.Error(t, err)
}

func TestDecodeDatasetRejectsTruncation(t *testing.T) {
	blob := EncodeDataset(sampleDataset())

	_, err := DecodeDataset(blob[:len(blob)-1])
	assert.Error(t, err, "truncated payload")

	_, err = DecodeDataset(append(blob, 0))
	assert.Error(t, err, "trailing bytes")

	_, err = DecodeDataset(blob[:6])
	assert.Error(t, err, "short header")
}

func TestDecodeDatasetCountGuard(t *testing.T) {
	blob := []byte(datasetMagic)
	blob = append(blob, 0xff, 0xff, 0xff, 0xff)
	_, err := DecodeDataset(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestDatasetFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.bvd")
	ds := sampleDataset()

	require.NoError(t, WriteDatasetFile(path, ds))
	got, err := ReadDatasetFile(path)
	require.NoError(t, err)
	assert.Len(t, got.Points, len(ds.Points))

	_, err = ReadDatasetFile(filepath.Join(t.TempDir(), "missing.bvd"))
	assert.Error(t, err)
}
