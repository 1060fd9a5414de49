package paginate

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPageSize is used when neither the call nor the listing config
	// sets a page size.
	DefaultPageSize = 100

	// DefaultConcurrency bounds in-flight page fetches after page 1.
	DefaultConcurrency = 4

	// DefaultMaxPages bounds the page count a backend may report.
	DefaultMaxPages = 10000
)

// Config tunes an Accumulator.
type Config struct {
	// PageSize is the listing default. A page size passed to Run wins.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// Concurrency limits parallel page fetches.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// MaxPages rejects listings reporting more pages than this.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
}

// Result is an accumulated listing. When NotReady is set the listing was
// skipped and the envelope is empty.
type Result[T any] struct {
	Envelope[T]
	NotReady bool
}

// Accumulator fetches every page of a listing and concatenates them.
type Accumulator[T any] struct {
	fetcher *PageFetcher[T]
	cfg     Config
}

// NewAccumulator returns an Accumulator using fetcher for each page.
func NewAccumulator[T any](fetcher *PageFetcher[T], cfg Config) *Accumulator[T] {
	return &Accumulator[T]{fetcher: fetcher, cfg: cfg}
}

func (a *Accumulator[T]) pageSize(override int) int {
	if override > 0 {
		return override
	}
	if a.cfg.PageSize > 0 {
		return a.cfg.PageSize
	}
	return DefaultPageSize
}

func (a *Accumulator[T]) maxPages() int {
	if a.cfg.MaxPages > 0 {
		return a.cfg.MaxPages
	}
	return DefaultMaxPages
}

func (a *Accumulator[T]) concurrency() int {
	if a.cfg.Concurrency > 0 {
		return a.cfg.Concurrency
	}
	return DefaultConcurrency
}

// Run fetches page 1 to learn the page count, then the remaining pages
// concurrently, and returns all objects in ascending page order. Any page
// failure fails the whole run; no partial result is returned.
func (a *Accumulator[T]) Run(ctx context.Context, filter map[string]any, pageSize int, orderBy string) (Result[T], error) {
	log := zap.L().With(zap.String("listing", a.fetcher.Name()))

	q := Query{
		Filter:   filter,
		Page:     1,
		PageSize: a.pageSize(pageSize),
		OrderBy:  orderBy,
	}

	first, err := a.fetcher.Fetch(ctx, q)
	if errors.Is(err, ErrNotReady) {
		log.Debug("paginate: listing not ready")
		return Result[T]{NotReady: true}, nil
	}
	if err != nil {
		return Result[T]{}, &PageFetchError{Page: 1, Err: err}
	}

	if first.Pages < 2 {
		return Result[T]{Envelope: accumulated(first.Objects)}, nil
	}
	if limit := a.maxPages(); first.Pages > limit {
		return Result[T]{}, &PageFetchError{
			Page: 1,
			Err:  eris.Wrapf(ErrTooManyPages, "%s reports %d pages, limit %d", a.fetcher.Name(), first.Pages, limit),
		}
	}

	// Each page writes only its own slot so completion order cannot
	// reorder the output.
	pages := make([][]T, first.Pages)
	pages[0] = first.Objects

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency())

	for p := 2; p <= first.Pages; p++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			pq := q
			pq.Page = p
			env, err := a.fetcher.Fetch(gctx, pq)
			if errors.Is(err, ErrNotReady) {
				return ErrNotReady
			}
			if err != nil {
				return &PageFetchError{Page: p, Err: err}
			}
			pages[p-1] = env.Objects
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotReady) {
			log.Debug("paginate: listing not ready", zap.Int("pages", first.Pages))
			return Result[T]{NotReady: true}, nil
		}
		return Result[T]{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result[T]{}, eris.Wrap(err, "paginate: accumulate")
	}

	total := 0
	for _, objs := range pages {
		total += len(objs)
	}
	objects := make([]T, 0, total)
	for _, objs := range pages {
		objects = append(objects, objs...)
	}

	log.Debug("paginate: accumulated listing",
		zap.Int("pages", first.Pages),
		zap.Int("page_size", q.PageSize),
		zap.Int("objects", len(objects)),
	)

	return Result[T]{Envelope: accumulated(objects)}, nil
}
