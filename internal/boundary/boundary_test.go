package boundary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/rescape/region-store/internal/model"
)

func square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// writeShapefile writes polygon records with NAME and CODE attributes.
func writeShapefile(t *testing.T, records []struct {
	name, code string
	ring       []shp.Point
}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("CODE", 10),
	}))
	for _, r := range records {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{r.ring}))
		n := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(n), 0, r.name))
		require.NoError(t, w.WriteAttribute(int(n), 1, r.code))
	}
	w.Close()
	fixDBFName(t, path)
	return path
}

// fixDBFName moves the attribute table go-shp's writer names "<base>dbf"
// to "<base>.dbf", where the reader looks for it.
func fixDBFName(t *testing.T, shpPath string) {
	t.Helper()
	base := strings.TrimSuffix(shpPath, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}

func TestReadShapefile(t *testing.T) {
	path := writeShapefile(t, []struct {
		name, code string
		ring       []shp.Point
	}{
		{"Ghent", "BE-VOV", square(3.6, 51.0, 0.2)},
		{"Oakland", "US-CA", square(-122.3, 37.7, 0.2)},
		{"Oakland Hills", "US-CA", square(-122.2, 37.8, 0.1)},
		{"", "", square(0, 0, 1)},
	})

	regions, err := ReadShapefile(path, ImportOptions{KeyField: "code", NameField: "NAME", KeyPrefix: "iso-"})
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "iso-be-vov", regions[0].Key)
	assert.Equal(t, "Ghent", regions[0].Name)
	assert.Equal(t, "iso-us-ca", regions[1].Key)
	assert.Equal(t, "Oakland", regions[1].Name)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(regions[1].Geojson, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "MultiPolygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, "Oakland Hills", fc.Features[1].Properties["NAME"])

	var data struct {
		Mapbox struct {
			Viewport Viewport `json:"viewport"`
		} `json:"mapbox"`
	}
	require.NoError(t, json.Unmarshal(regions[0].Data, &data))
	assert.InDelta(t, 3.7, data.Mapbox.Viewport.Longitude, 1e-9)
	assert.InDelta(t, 51.1, data.Mapbox.Viewport.Latitude, 1e-9)
	assert.Greater(t, data.Mapbox.Viewport.Zoom, 8.0)
}

func TestReadShapefile_Errors(t *testing.T) {
	_, err := ReadShapefile("regions.shp", ImportOptions{})
	assert.ErrorContains(t, err, "key field is required")

	_, err = ReadShapefile(filepath.Join(t.TempDir(), "missing.shp"), ImportOptions{KeyField: "CODE"})
	assert.ErrorContains(t, err, "open shapefile")

	path := writeShapefile(t, nil)
	_, err = ReadShapefile(path, ImportOptions{KeyField: "GEOID"})
	assert.ErrorContains(t, err, `no field "GEOID"`)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "sao-paulo-sp", Slug("  Sao Paulo (SP) "))
	assert.Equal(t, "be-vov", Slug("BE-VOV"))
	assert.Empty(t, Slug("---"))
}

func TestShapeGeometry(t *testing.T) {
	g := shapeGeometry(&shp.Point{X: -80.19, Y: 25.77})
	require.NotNil(t, g)
	assert.Equal(t, []float64{-80.19, 25.77}, g.FlatCoords())

	pl := shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}}, {{X: 2, Y: 2}, {X: 3, Y: 3}}})
	mls, ok := shapeGeometry(pl).(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 2, mls.NumLineStrings())

	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(0, 0, 1), square(5, 5, 1)}))
	mp, ok := shapeGeometry(&poly).(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())

	assert.Nil(t, shapeGeometry(nil))
	assert.Nil(t, shapeGeometry(&shp.Polygon{}))
	assert.Nil(t, shapeGeometry(&shp.PolyLine{}))
}

func TestViewportFor(t *testing.T) {
	assert.Equal(t, Viewport{}, ViewportFor(nil))
	assert.Equal(t, Viewport{}, ViewportFor(geom.NewBounds(geom.XY)))

	world := geom.NewBounds(geom.XY).Set(-180, -85, 180, 85)
	v := ViewportFor(world)
	assert.InDelta(t, 0, v.Zoom, 0.01)
	assert.InDelta(t, 0, v.Longitude, 1e-9)

	point := geom.NewBounds(geom.XY).Set(4.35, 50.85, 4.35, 50.85)
	v = ViewportFor(point)
	assert.Equal(t, float64(MaxZoom), v.Zoom)
	assert.InDelta(t, 50.85, v.Latitude, 1e-9)

	city := geom.NewBounds(geom.XY).Set(-122.35, 37.7, -122.1, 37.9)
	v = ViewportFor(city)
	assert.Greater(t, v.Zoom, 9.0)
	assert.Less(t, v.Zoom, 12.0)
}

func TestBounds(t *testing.T) {
	b, err := Bounds(json.RawMessage(`{"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}},
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [3, -4]}, "properties": {}}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -4}, []float64{b.Min(0), b.Min(1)})
	assert.Equal(t, []float64{3, 2}, []float64{b.Max(0), b.Max(1)})

	b, err = Bounds(json.RawMessage(`{"type": "Polygon", "coordinates": [[[0, 0], [0, 1], [1, 1], [0, 0]]]}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Max(0))

	b, err = Bounds(json.RawMessage(`{"type": "Feature", "geometry": {"type": "Point", "coordinates": [5, 6]}, "properties": null}`))
	require.NoError(t, err)
	assert.Equal(t, 5.0, b.Min(0))

	_, err = Bounds(nil)
	assert.ErrorContains(t, err, "empty geojson")

	_, err = Bounds(json.RawMessage(`{"type": "FeatureCollection", "features": []}`))
	assert.ErrorContains(t, err, "no coordinates")
}

func TestSeedViewport(t *testing.T) {
	region := model.Region{Entity: model.Entity{
		ID:      "10",
		Geojson: json.RawMessage(`{"type": "Polygon", "coordinates": [[[3.6, 51.0], [3.6, 51.2], [3.8, 51.2], [3.8, 51.0], [3.6, 51.0]]]}`),
	}}

	a := model.NewAssociation("10", map[string]any{"mapbox": map[string]any{"style": "light"}})
	seeded, changed, err := SeedViewport(a, region)
	require.NoError(t, err)
	assert.True(t, changed)

	mapbox := seeded.State["mapbox"].(map[string]any)
	assert.Equal(t, "light", mapbox["style"])
	vp := mapbox["viewport"].(map[string]any)
	assert.InDelta(t, 3.7, vp["longitude"], 1e-9)
	assert.InDelta(t, 51.1, vp["latitude"], 1e-9)

	_, hasViewport := a.State["mapbox"].(map[string]any)["viewport"]
	assert.False(t, hasViewport, "input association must not change")

	again, changed, err := SeedViewport(seeded, region)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, seeded, again)

	_, changed, err = SeedViewport(model.NewAssociation("11", nil), model.Region{})
	require.NoError(t, err)
	assert.False(t, changed)
}
