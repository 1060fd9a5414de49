package scope

import (
	"github.com/rescape/region-store/internal/model"
)

// Merge reconciles the three collections of one scope by entity id with
// priority submitted > local > existing. Inputs are not modified.
func Merge(existing, local, submitted []model.Association) ([]model.Association, error) {
	return MergeAll(existing, local, submitted)
}

// MergeAll merges any number of collections, each overriding the ones
// before it. For every id the record is built by overlaying the matching
// records in order: nested objects merge key by key, every other value is
// replaced. Output order is the order in which ids first appear scanning
// the collections in order.
func MergeAll(collections ...[]model.Association) ([]model.Association, error) {
	indexes := make([]*Index, 0, len(collections))
	for _, c := range collections {
		ix, err := NewIndex(c)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, ix)
	}

	seen := make(map[model.ID]bool)
	var order []model.ID
	for _, ix := range indexes {
		for _, id := range ix.order {
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
	}

	merged := make([]model.Association, 0, len(order))
	for _, id := range order {
		rec := model.Association{
			Entity: map[string]any{"id": id},
			State:  map[string]any{},
		}
		for _, ix := range indexes {
			if a, ok := ix.byID[id]; ok {
				overlay(rec.State, a.State)
			}
		}
		merged = append(merged, rec)
	}
	return merged, nil
}

// overlay writes src into dst. When both sides hold an object under the
// same key the objects are merged recursively; otherwise the src value
// replaces the dst value.
func overlay(dst, src map[string]any) {
	for k, v := range src {
		srcObj, srcIsObj := v.(map[string]any)
		dstObj, dstIsObj := dst[k].(map[string]any)
		if srcIsObj && dstIsObj {
			next := model.CloneMap(dstObj)
			overlay(next, srcObj)
			dst[k] = next
			continue
		}
		dst[k] = model.CloneValue(v)
	}
}
