package building

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const footprintsFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"presence": 1},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [[[[20,20],[25,20],[25,25],[20,25],[20,20]]]]
      }
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Point", "coordinates": [50, 50]}
    }
  ]
}`

func writeFootprints(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "footprints.geojson")
	require.NoError(t, os.WriteFile(path, []byte(footprintsFixture), 0644))
	return path
}

func TestLoadFootprintOverlay(t *testing.T) {
	fo, err := LoadFootprintOverlay(writeFootprints(t))
	require.NoError(t, err)
	assert.Equal(t, 2, fo.Count(), "point geometry is ignored")

	assert.True(t, fo.Overlayed(5, 5))
	assert.True(t, fo.Overlayed(22, 23))
	assert.False(t, fo.Overlayed(15, 15))
	assert.False(t, fo.Overlayed(-1, 5))
}

func TestLoadFootprintOverlayErrors(t *testing.T) {
	_, err := LoadFootprintOverlay(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.geojson")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0644))
	_, err = LoadFootprintOverlay(bad)
	assert.Error(t, err)
}

func TestFillFromProviders(t *testing.T) {
	fo, err := LoadFootprintOverlay(writeFootprints(t))
	require.NoError(t, err)

	arena := NewPointArena(2)
	arena.Add(Point{X: 5, Y: 5, Probability: 0.9})
	arena.Add(Point{X: 15, Y: 15, Probability: 0.9})

	FillFromProviders(arena, nil, fo)
	assert.True(t, arena.At(0).IsOverlayed)
	assert.False(t, arena.At(1).IsOverlayed)
}
