// Package scope reconciles a user's scope associations (user-regions,
// user-projects, user-search-locations) and persists the result.
package scope

import (
	"github.com/rescape/region-store/internal/model"
)

// Index is an id-keyed view over one association collection.
type Index struct {
	byID  map[model.ID]model.Association
	order []model.ID
}

// NewIndex indexes as by entity id. Every indexed record is normalized so
// its entity carries only the id. Records repeating an id are folded into
// the first one, later fields winning. A record without an entity id is
// rejected with a MalformedAssociationError.
func NewIndex(as []model.Association) (*Index, error) {
	ix := &Index{
		byID:  make(map[model.ID]model.Association, len(as)),
		order: make([]model.ID, 0, len(as)),
	}
	for i, a := range as {
		id, ok := a.EntityID()
		if !ok {
			return nil, &MalformedAssociationError{Position: i}
		}
		rec := normalize(id, a)
		if prev, seen := ix.byID[id]; seen {
			overlay(prev.State, rec.State)
			continue
		}
		ix.byID[id] = rec
		ix.order = append(ix.order, id)
	}
	return ix, nil
}

// Get returns the normalized record for id.
func (ix *Index) Get(id model.ID) (model.Association, bool) {
	a, ok := ix.byID[id]
	return a, ok
}

// IDs returns the indexed ids in order of first appearance.
func (ix *Index) IDs() []model.ID {
	return append([]model.ID(nil), ix.order...)
}

// Len returns the number of distinct ids.
func (ix *Index) Len() int { return len(ix.order) }

// normalize copies a and strips the entity down to its id. Denormalized
// entity fields belong to the entity's own record.
func normalize(id model.ID, a model.Association) model.Association {
	state := model.CloneMap(a.State)
	if state == nil {
		state = map[string]any{}
	}
	return model.Association{
		Entity: map[string]any{"id": id},
		State:  state,
	}
}
