// Package paginate fetches paged listings and folds every page into one
// accumulated result.
package paginate

// DefaultOrderBy is the order key used when a query leaves OrderBy empty.
const DefaultOrderBy = "id"

// Query selects one page of a listing.
type Query struct {
	// Filter is passed to the listing backend unchanged.
	Filter map[string]any
	// Page is 1-based.
	Page     int
	PageSize int
	// OrderBy is a field name, optionally prefixed with "-" for descending
	// order, or a dotted path for nested fields.
	OrderBy string
}

// Envelope is one page of a listing as returned by the backend.
type Envelope[T any] struct {
	Objects  []T  `json:"objects"`
	Page     int  `json:"page"`
	Pages    int  `json:"pages"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	HasPrev  bool `json:"hasPrev"`
}

// Pages returns ceil(total/pageSize), or 0 for an empty listing.
func Pages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// normalize fills in derived fields so envelopes from different backends
// compare equal.
func (e Envelope[T]) normalize() Envelope[T] {
	if e.Objects == nil {
		e.Objects = []T{}
	}
	e.HasPrev = e.Page > 1
	e.HasNext = e.Page < e.Pages
	return e
}

// accumulated relabels objects as the single page of an accumulated result.
func accumulated[T any](objects []T) Envelope[T] {
	if objects == nil {
		objects = []T{}
	}
	return Envelope[T]{
		Objects:  objects,
		Page:     1,
		Pages:    1,
		PageSize: len(objects),
	}
}
