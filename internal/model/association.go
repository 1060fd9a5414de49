package model

// Association links a user to a scope entity (region, project, search
// location) and carries the user's per-entity state such as activity,
// selection and mapbox viewport.
type Association struct {
	// Entity is the referenced scope entity. Its "id" key is the identity
	// of the association; other keys are denormalized copies.
	Entity map[string]any
	// State holds every other field of the association record.
	State map[string]any
}

// NewAssociation returns an association for the entity id with the given
// state. The state map is copied.
func NewAssociation(id ID, state map[string]any) Association {
	return Association{
		Entity: map[string]any{"id": id},
		State:  CloneMap(state),
	}
}

// EntityID returns the id of the referenced entity.
func (a Association) EntityID() (ID, bool) {
	if a.Entity == nil {
		return "", false
	}
	return IDOf(a.Entity["id"])
}

// Clone returns a deep copy of the association.
func (a Association) Clone() Association {
	return Association{
		Entity: CloneMap(a.Entity),
		State:  CloneMap(a.State),
	}
}

// Encode flattens the association into its wire shape, placing the entity
// under entityKey (e.g. {"region": {"id": "1"}, "activity": {...}}).
func (a Association) Encode(entityKey string) map[string]any {
	out := make(map[string]any, len(a.State)+1)
	for k, v := range a.State {
		out[k] = CloneValue(v)
	}
	if a.Entity != nil {
		out[entityKey] = CloneMap(a.Entity)
	}
	return out
}

// DecodeAssociation splits a wire record into entity and state. A record
// whose entityKey is missing or not an object decodes with a nil Entity.
func DecodeAssociation(entityKey string, rec map[string]any) Association {
	a := Association{State: make(map[string]any, len(rec))}
	for k, v := range rec {
		if k == entityKey {
			if m, ok := v.(map[string]any); ok {
				a.Entity = CloneMap(m)
			}
			continue
		}
		a.State[k] = CloneValue(v)
	}
	return a
}

// CloneMap deep-copies a decoded JSON object. Nested maps and slices are
// copied; scalars are shared.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
