package paginate

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
)

// Source executes a single page query against a listing backend.
type Source[T any] interface {
	Page(ctx context.Context, q Query) (Envelope[T], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, q Query) (Envelope[T], error)

// Page implements Source.
func (f SourceFunc[T]) Page(ctx context.Context, q Query) (Envelope[T], error) {
	return f(ctx, q)
}

// PageFetcher validates page queries and normalizes the envelopes a Source
// returns.
type PageFetcher[T any] struct {
	name string
	src  Source[T]
}

// NewPageFetcher wraps src. The name identifies the listing in errors and
// logs (e.g. "regions").
func NewPageFetcher[T any](name string, src Source[T]) *PageFetcher[T] {
	return &PageFetcher[T]{name: name, src: src}
}

// Name returns the listing name.
func (f *PageFetcher[T]) Name() string { return f.name }

// Fetch requests one page. It returns ErrNotReady unchanged when the source
// reports the query must be skipped.
func (f *PageFetcher[T]) Fetch(ctx context.Context, q Query) (Envelope[T], error) {
	if q.Page < 1 {
		return Envelope[T]{}, ErrMissingPage
	}
	if q.PageSize < 1 {
		return Envelope[T]{}, ErrInvalidPageSize
	}
	if q.OrderBy == "" {
		q.OrderBy = DefaultOrderBy
	}

	env, err := f.src.Page(ctx, q)
	if errors.Is(err, ErrNotReady) {
		return Envelope[T]{}, ErrNotReady
	}
	if err != nil {
		return Envelope[T]{}, eris.Wrapf(err, "paginate: %s page %d", f.name, q.Page)
	}

	if env.Page == 0 {
		env.Page = q.Page
	}
	if env.PageSize == 0 {
		env.PageSize = q.PageSize
	}
	return env.normalize(), nil
}

// RequireFilter wraps src so queries missing any of keys, or carrying a nil
// value for one, report ErrNotReady instead of reaching src.
func RequireFilter[T any](src Source[T], keys ...string) Source[T] {
	return SourceFunc[T](func(ctx context.Context, q Query) (Envelope[T], error) {
		for _, key := range keys {
			if v, ok := q.Filter[key]; !ok || v == nil {
				return Envelope[T]{}, ErrNotReady
			}
		}
		return src.Page(ctx, q)
	})
}
