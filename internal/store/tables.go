package store

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/model"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type table[T any] struct {
	tableSpec
	scan func(rowScanner) (T, error)
}

var entityColumns = []string{"id", "key", "name", "geojson", "data", "deleted", "created_at", "updated_at"}

var entityFields = map[string]string{
	"id":         "id",
	"key":        "key",
	"name":       "name",
	"deleted":    "deleted",
	"createDate": "created_at",
	"updateDate": "updated_at",
}

var entityJSON = map[string]string{
	"data":    "data",
	"geojson": "geojson",
}

func withFields(extra map[string]string) map[string]string {
	out := maps.Clone(entityFields)
	maps.Copy(out, extra)
	return out
}

func withColumns(extra ...string) []string {
	return append(append([]string(nil), entityColumns...), extra...)
}

// entityRow holds the nullable scan targets for entityColumns.
type entityRow struct {
	id, key, name string
	geojson, data []byte
	deleted       *time.Time
	created       *time.Time
	updated       *time.Time
}

func (r *entityRow) dest(extra ...any) []any {
	return append([]any{&r.id, &r.key, &r.name, &r.geojson, &r.data, &r.deleted, &r.created, &r.updated}, extra...)
}

func (r *entityRow) entity() model.Entity {
	return model.Entity{
		ID:        model.ID(r.id),
		Key:       r.key,
		Name:      r.name,
		Geojson:   rawJSON(r.geojson),
		Data:      rawJSON(r.data),
		Deleted:   r.deleted,
		CreatedAt: r.created,
		UpdatedAt: r.updated,
	}
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(append([]byte(nil), b...))
}

var regionsTable = table[model.Region]{
	tableSpec: tableSpec{
		name:       "regions",
		columns:    entityColumns,
		fields:     entityFields,
		jsonFields: entityJSON,
	},
	scan: func(s rowScanner) (model.Region, error) {
		var r entityRow
		if err := s.Scan(r.dest()...); err != nil {
			return model.Region{}, eris.Wrap(err, "store: scan region")
		}
		return model.Region{Entity: r.entity()}, nil
	},
}

var locationsTable = table[model.Location]{
	tableSpec: tableSpec{
		name:       "locations",
		columns:    entityColumns,
		fields:     entityFields,
		jsonFields: entityJSON,
	},
	scan: func(s rowScanner) (model.Location, error) {
		var r entityRow
		if err := s.Scan(r.dest()...); err != nil {
			return model.Location{}, eris.Wrap(err, "store: scan location")
		}
		return model.Location{Entity: r.entity()}, nil
	},
}

var projectsTable = table[model.Project]{
	tableSpec: tableSpec{
		name:       "projects",
		columns:    withColumns("user_id", "region_ids"),
		fields:     withFields(map[string]string{"user": "user_id"}),
		jsonFields: entityJSON,
	},
	scan: func(s rowScanner) (model.Project, error) {
		var (
			r         entityRow
			userID    *string
			regionIDs []byte
		)
		if err := s.Scan(r.dest(&userID, &regionIDs)...); err != nil {
			return model.Project{}, eris.Wrap(err, "store: scan project")
		}
		p := model.Project{Entity: r.entity()}
		if userID != nil {
			p.User = &model.Ref{ID: model.ID(*userID)}
		}
		if len(regionIDs) > 0 {
			var ids []model.ID
			if err := json.Unmarshal(regionIDs, &ids); err != nil {
				return model.Project{}, eris.Wrapf(err, "store: decode regions of project %s", r.id)
			}
			for _, id := range ids {
				p.Regions = append(p.Regions, model.Ref{ID: id})
			}
		}
		return p, nil
	},
}

var searchLocationsTable = table[model.SearchLocation]{
	tableSpec: tableSpec{
		name:    "search_locations",
		columns: withColumns("identification"),
		fields:  entityFields,
		jsonFields: map[string]string{
			"data":           "data",
			"geojson":        "geojson",
			"identification": "identification",
		},
	},
	scan: func(s rowScanner) (model.SearchLocation, error) {
		var (
			r     entityRow
			ident []byte
		)
		if err := s.Scan(r.dest(&ident)...); err != nil {
			return model.SearchLocation{}, eris.Wrap(err, "store: scan search location")
		}
		return model.SearchLocation{Entity: r.entity(), Identification: rawJSON(ident)}, nil
	},
}
