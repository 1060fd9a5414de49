package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/model"
)

// ErrUnknownField is returned for filter or order fields a table does not
// expose.
var ErrUnknownField = eris.New("store: unknown field")

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// jsonText renders the text value at path inside a JSON column.
func (d dialect) jsonText(column string, path []string) string {
	if d == dialectPostgres {
		return fmt.Sprintf("(%s #>> '{%s}')", column, strings.Join(path, ","))
	}
	return fmt.Sprintf("CAST(json_extract(%s, '$.%s') AS TEXT)", column, strings.Join(path, "."))
}

var pathSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tableSpec maps API field names onto a table's columns.
type tableSpec struct {
	name    string
	columns []string
	// fields maps API names (createDate) to columns (created_at).
	fields map[string]string
	// jsonFields are JSON columns that accept dotted paths (data.a.b).
	jsonFields map[string]string
}

func (t tableSpec) hasField(name string) bool {
	_, ok := t.fields[name]
	return ok
}

// column resolves an API field, or a dotted path into a JSON column, to a
// SQL expression. The bool reports a JSON path, which compares as text.
func (t tableSpec) column(d dialect, field string) (string, bool, error) {
	if col, ok := t.fields[field]; ok {
		return col, false, nil
	}
	head, rest, ok := strings.Cut(field, ".")
	if !ok {
		return "", false, eris.Wrapf(ErrUnknownField, "%s.%s", t.name, field)
	}
	col, ok := t.jsonFields[head]
	if !ok {
		return "", false, eris.Wrapf(ErrUnknownField, "%s.%s", t.name, field)
	}
	path := strings.Split(rest, ".")
	for _, seg := range path {
		if !pathSegment.MatchString(seg) {
			return "", false, eris.Wrapf(ErrUnknownField, "%s.%s", t.name, field)
		}
	}
	return d.jsonText(col, path), true, nil
}

// builder accumulates bind arguments for one statement.
type builder struct {
	d    dialect
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

var operators = []string{"_contains", "_startswith", "_in", "_isnull"}

func splitOperator(key string) (string, string) {
	for _, op := range operators {
		if field, ok := strings.CutSuffix(key, op); ok && field != "" {
			return field, op
		}
	}
	return key, ""
}

// where renders filter as a WHERE clause. Keys are field names with an
// optional _contains, _startswith, _in or _isnull suffix. Soft-deleted rows
// are excluded unless the filter mentions deleted.
func (b *builder) where(t tableSpec, filter map[string]any) (string, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var conds []string
	deletedSeen := false
	for _, key := range keys {
		field, op := splitOperator(key)
		if field == "deleted" {
			deletedSeen = true
		}
		col, isJSON, err := t.column(b.d, field)
		if err != nil {
			return "", err
		}
		v := filterValue(filter[key], isJSON)

		switch op {
		case "":
			if v == nil {
				conds = append(conds, col+" IS NULL")
			} else {
				conds = append(conds, col+" = "+b.bind(v))
			}
		case "_contains":
			conds = append(conds, col+" LIKE "+b.bind("%"+fmt.Sprint(v)+"%"))
		case "_startswith":
			conds = append(conds, col+" LIKE "+b.bind(fmt.Sprint(v)+"%"))
		case "_in":
			list, ok := filter[key].([]any)
			if !ok {
				return "", eris.Errorf("store: %s expects a list", key)
			}
			if len(list) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			binds := make([]string, len(list))
			for i, item := range list {
				binds[i] = b.bind(filterValue(item, isJSON))
			}
			conds = append(conds, col+" IN ("+strings.Join(binds, ", ")+")")
		case "_isnull":
			isNull, ok := filter[key].(bool)
			if !ok {
				return "", eris.Errorf("store: %s expects a boolean", key)
			}
			if isNull {
				conds = append(conds, col+" IS NULL")
			} else {
				conds = append(conds, col+" IS NOT NULL")
			}
		}
	}

	if !deletedSeen && t.hasField("deleted") {
		conds = append(conds, "deleted IS NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

// filterValue converts a filter value to a bind argument. References like
// {"id": 3} compare by id.
func filterValue(v any, asText bool) any {
	if m, ok := v.(map[string]any); ok {
		if id, ok := model.IDOf(m["id"]); ok {
			return id.String()
		}
	}
	switch t := v.(type) {
	case nil:
		return nil
	case model.ID:
		return t.String()
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	if asText {
		return fmt.Sprint(v)
	}
	return v
}

// orderBy renders a comma-separated list of fields, each optionally
// prefixed with "-" for descending order. id is appended as a tiebreaker
// so pages never overlap.
func orderBy(d dialect, t tableSpec, spec string) (string, error) {
	var parts []string
	sawID := false
	for _, raw := range strings.Split(spec, ",") {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		dir := "ASC"
		if name, ok := strings.CutPrefix(field, "-"); ok {
			field, dir = name, "DESC"
		}
		col, _, err := t.column(d, field)
		if err != nil {
			return "", err
		}
		if field == "id" {
			sawID = true
		}
		parts = append(parts, col+" "+dir)
	}
	if !sawID {
		parts = append(parts, "id ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
