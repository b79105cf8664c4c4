package spatial

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// Contains reports whether a point lies inside a county polygon or
// multipolygon. Any geometry failure fails open (returns true): a false
// negative silently hides an observation, while a false positive only makes a
// county appear to contain one extra point.
func Contains(g geom.T, lat, lng float64) (inside bool) {
	if g == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("spatial: point-in-polygon panic, failing open", zap.Any("cause", r))
			inside = true
		}
	}()

	pt := geom.Coord{lng, lat}
	switch poly := g.(type) {
	case *geom.Polygon:
		return polygonContains(poly, pt)
	case *geom.MultiPolygon:
		for i := 0; i < poly.NumPolygons(); i++ {
			if polygonContains(poly.Polygon(i), pt) {
				return true
			}
		}
		return false
	default:
		// Unsupported geometry counts as a test error.
		return true
	}
}

// polygonContains tests the exterior ring and excludes holes.
func polygonContains(poly *geom.Polygon, pt geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return true
	}
	if !xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// Centroid computes the area centroid of a polygonal geometry, returning
// lat, lng and false when the geometry is missing or not polygonal.
func Centroid(g geom.T) (lat, lng float64, ok bool) {
	if g == nil {
		return 0, 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("spatial: centroid panic", zap.Any("cause", r))
			lat, lng, ok = 0, 0, false
		}
	}()

	switch poly := g.(type) {
	case *geom.Polygon:
		c, err := xy.Centroid(poly)
		if err != nil {
			return 0, 0, false
		}
		return c[1], c[0], true
	case *geom.MultiPolygon:
		c, err := xy.Centroid(poly)
		if err != nil {
			return 0, 0, false
		}
		return c[1], c[0], true
	default:
		return 0, 0, false
	}
}
