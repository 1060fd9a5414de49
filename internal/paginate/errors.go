package paginate

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/model"
)

var (
	// ErrNotReady signals the listing cannot be queried yet because data it
	// depends on has not resolved. It is a loading state, not a failure.
	ErrNotReady = model.ErrNotReady

	// ErrMissingPage is returned when a page fetch has no page number.
	ErrMissingPage = eris.New("paginate: page number is required")

	// ErrInvalidPageSize is returned for a page size below 1.
	ErrInvalidPageSize = eris.New("paginate: page size must be at least 1")

	// ErrTooManyPages is returned when page 1 reports more pages than the
	// accumulator will fetch.
	ErrTooManyPages = eris.New("paginate: page count exceeds limit")
)

// PageFetchError reports the page whose fetch aborted an accumulation.
type PageFetchError struct {
	Page int
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("paginate: fetch page %d: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error {
	return e.Err
}
