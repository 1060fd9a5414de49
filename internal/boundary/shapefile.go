package boundary

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/model"
)

// ImportOptions selects the shapefile attributes that identify a region.
type ImportOptions struct {
	// KeyField holds the region key; values are slugged.
	KeyField string
	// NameField holds the display name. Defaults to KeyField.
	NameField string
	// KeyPrefix is prepended to every key, e.g. "us-county-".
	KeyPrefix string
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ReadShapefile reads one region per shapefile record. Records sharing a
// key are merged into one feature collection. Records without a key or
// geometry are skipped.
func ReadShapefile(shpPath string, opts ImportOptions) ([]model.Region, error) {
	if opts.KeyField == "" {
		return nil, eris.New("boundary: key field is required")
	}
	if opts.NameField == "" {
		opts.NameField = opts.KeyField
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		names[i] = name
		fieldIdx[strings.ToLower(name)] = i
	}
	keyIdx, ok := fieldIdx[strings.ToLower(opts.KeyField)]
	if !ok {
		return nil, eris.Errorf("boundary: shapefile %s has no field %q", shpPath, opts.KeyField)
	}
	nameIdx, ok := fieldIdx[strings.ToLower(opts.NameField)]
	if !ok {
		return nil, eris.Errorf("boundary: shapefile %s has no field %q", shpPath, opts.NameField)
	}

	type pending struct {
		name     string
		features []*geojson.Feature
		bounds   *geom.Bounds
	}
	byKey := map[string]*pending{}
	var order []string
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		attr := func(i int) string {
			return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		key := Slug(attr(keyIdx))
		g := shapeGeometry(shape)
		if key == "" || g == nil {
			skipped++
			continue
		}
		key = opts.KeyPrefix + key

		props := make(map[string]any, len(names))
		for i, name := range names {
			if v := attr(i); v != "" {
				props[name] = v
			}
		}

		p, ok := byKey[key]
		if !ok {
			p = &pending{name: attr(nameIdx), bounds: geom.NewBounds(geom.XY)}
			byKey[key] = p
			order = append(order, key)
		}
		p.features = append(p.features, &geojson.Feature{Geometry: g, Properties: props})
		p.bounds.Extend(g)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	regions := make([]model.Region, 0, len(order))
	for _, key := range order {
		p := byKey[key]
		gj, err := json.Marshal(&geojson.FeatureCollection{Features: p.features})
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: encode region %s", key)
		}
		data, err := json.Marshal(map[string]any{
			"mapbox": map[string]any{"viewport": ViewportFor(p.bounds)},
		})
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: encode region %s data", key)
		}
		regions = append(regions, model.Region{Entity: model.Entity{
			Key:     key,
			Name:    p.name,
			Geojson: gj,
			Data:    data,
		}})
	}
	return regions, nil
}
