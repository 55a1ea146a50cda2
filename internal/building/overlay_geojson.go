package building

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// FootprintOverlay is an OverlayProvider backed by a GeoJSON
// FeatureCollection of building footprints, the file-based stand-in for
// the external vector-database join. Coordinates must share the point
// cloud's projected CRS.
type FootprintOverlay struct {
	polygons []orb.Polygon
	bounds   []orb.Bound
}

// LoadFootprintOverlay reads a GeoJSON FeatureCollection and keeps its
// Polygon and MultiPolygon geometries. Other geometry types are ignored.
func LoadFootprintOverlay(path string) (*FootprintOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read footprints: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse footprints: %w", err)
	}

	fo := &FootprintOverlay{}
	for _, f := range fc.Features {
		switch geom := f.Geometry.(type) {
		case orb.Polygon:
			fo.add(geom)
		case orb.MultiPolygon:
			for _, poly := range geom {
				fo.add(poly)
			}
		}
	}
	return fo, nil
}

func (fo *FootprintOverlay) add(poly orb.Polygon) {
	if len(poly) == 0 {
		return
	}
	fo.polygons = append(fo.polygons, poly)
	fo.bounds = append(fo.bounds, poly.Bound())
}

// Count returns the number of footprint polygons loaded.
func (fo *FootprintOverlay) Count() int { return len(fo.polygons) }

// Overlayed reports whether the point lies inside any footprint. Bounding
// boxes cut the polygon tests down before the exact containment check.
func (fo *FootprintOverlay) Overlayed(x, y float64) bool {
	pt := orb.Point{x, y}
	for i, b := range fo.bounds {
		if !b.Contains(pt) {
			continue
		}
		if planar.PolygonContains(fo.polygons[i], pt) {
			return true
		}
	}
	return false
}
