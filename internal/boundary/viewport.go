package boundary

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/rescape/region-store/internal/model"
)

// MaxZoom caps the zoom of viewports fitted to very small geometries.
const MaxZoom = 18

// Viewport is a mapbox camera position.
type Viewport struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// ViewportFor centers a viewport on b with the largest zoom that still
// shows the whole box on a 512px web mercator tile.
func ViewportFor(b *geom.Bounds) Viewport {
	if b == nil || b.IsEmpty() {
		return Viewport{}
	}
	minX, minY := b.Min(0), b.Min(1)
	maxX, maxY := b.Max(0), b.Max(1)

	v := Viewport{
		Longitude: (minX + maxX) / 2,
		Latitude:  (minY + maxY) / 2,
		Zoom:      MaxZoom,
	}

	if span := maxX - minX; span > 0 {
		v.Zoom = math.Min(v.Zoom, math.Log2(360/span))
	}
	if span := mercatorY(maxY) - mercatorY(minY); span > 0 {
		v.Zoom = math.Min(v.Zoom, math.Log2(2*math.Pi/span))
	}
	v.Zoom = math.Max(0, math.Floor(v.Zoom*100)/100)
	return v
}

// mercatorY projects a latitude in degrees to web mercator radians.
func mercatorY(lat float64) float64 {
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}

// Bounds returns the bounding box of a GeoJSON geometry, feature or
// feature collection.
func Bounds(raw json.RawMessage) (*geom.Bounds, error) {
	if len(raw) == 0 {
		return nil, eris.New("boundary: empty geojson")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geojson")
	}

	b := geom.NewBounds(geom.XY)
	switch probe.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(raw, &fc); err != nil {
			return nil, eris.Wrap(err, "boundary: decode feature collection")
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				b.Extend(f.Geometry)
			}
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, eris.Wrap(err, "boundary: decode feature")
		}
		if f.Geometry != nil {
			b.Extend(f.Geometry)
		}
	default:
		var g geom.T
		if err := geojson.Unmarshal(raw, &g); err != nil {
			return nil, eris.Wrap(err, "boundary: decode geometry")
		}
		b.Extend(g)
	}

	if b.IsEmpty() {
		return nil, eris.New("boundary: geojson has no coordinates")
	}
	return b, nil
}

// SeedViewport fills mapbox.viewport of a user-region association from the
// region's geometry when the association has none. It reports whether the
// association changed.
func SeedViewport(a model.Association, region model.Region) (model.Association, bool, error) {
	if existing, ok := a.State["mapbox"].(map[string]any); ok {
		if _, ok := existing["viewport"]; ok {
			return a, false, nil
		}
	}
	if len(region.Geojson) == 0 {
		return a, false, nil
	}

	b, err := Bounds(region.Geojson)
	if err != nil {
		return a, false, eris.Wrapf(err, "boundary: viewport for region %s", region.ID)
	}
	v := ViewportFor(b)

	out := a.Clone()
	if out.State == nil {
		out.State = map[string]any{}
	}
	mapbox, _ := out.State["mapbox"].(map[string]any)
	if mapbox == nil {
		mapbox = map[string]any{}
	}
	mapbox["viewport"] = map[string]any{
		"latitude":  v.Latitude,
		"longitude": v.Longitude,
		"zoom":      v.Zoom,
	}
	out.State["mapbox"] = mapbox
	return out, true, nil
}
