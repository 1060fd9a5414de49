package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ID identifies a remote entity. The GraphQL backend serializes ids as
// strings or integers depending on the type, so both decode into ID.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Empty reports whether the id is unset.
func (id ID) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return eris.Wrap(err, "model: decode id")
	}
	if raw == nil {
		*id = ""
		return nil
	}
	v, ok := IDOf(raw)
	if !ok {
		return eris.Errorf("model: unsupported id value %s", string(b))
	}
	*id = v
	return nil
}

// IDOf converts a decoded JSON value into an ID. It reports false when the
// value cannot identify an entity (nil, empty string, objects, bools).
func IDOf(v any) (ID, bool) {
	switch t := v.(type) {
	case ID:
		return t, !t.Empty()
	case string:
		return ID(t), strings.TrimSpace(t) != ""
	case json.Number:
		return ID(t.String()), t.String() != ""
	case float64:
		if t != float64(int64(t)) {
			return ID(strconv.FormatFloat(t, 'f', -1, 64)), true
		}
		return ID(strconv.FormatInt(int64(t), 10)), true
	case float32:
		return IDOf(float64(t))
	case int:
		return ID(strconv.Itoa(t)), true
	case int32:
		return ID(strconv.FormatInt(int64(t), 10)), true
	case int64:
		return ID(strconv.FormatInt(t, 10)), true
	case uint:
		return ID(strconv.FormatUint(uint64(t), 10)), true
	case uint64:
		return ID(strconv.FormatUint(t, 10)), true
	default:
		return "", false
	}
}

// Ref is a reference to another entity by id only.
type Ref struct {
	ID ID `json:"id"`
}
