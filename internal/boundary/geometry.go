// Package boundary imports region boundaries from shapefiles and derives
// map viewports from region geometry.
package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeGeometry converts a go-shp geometry to go-geom. It returns nil for
// unsupported or empty shapes.
func shapeGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// partRange returns the point range of part i.
func partRange(parts []int32, numParts int32, numPoints int, i int32) (int32, int32) {
	start := parts[i]
	end := int32(numPoints)
	if i+1 < numParts {
		end = parts[i+1]
	}
	return start, end
}

func partCoords(points []shp.Point, start, end int32) []float64 {
	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}

func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partRange(pl.Parts, pl.NumParts, len(pl.Points), i)
		ls := geom.NewLineStringFlat(geom.XY, partCoords(pl.Points, start, end))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("boundary: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon maps each shapefile ring to its own polygon.
// Shapefiles do not mark which rings are holes, and region outlines rarely
// have any.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start, end := partRange(p.Parts, p.NumParts, len(p.Points), i)
		ring := geom.NewLinearRingFlat(geom.XY, partCoords(p.Points, start, end))
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
