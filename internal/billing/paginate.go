package billing

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// DefaultPageSize is the per-page item limit for list operations.
	DefaultPageSize = 100
	// DefaultMaxPages bounds a single list-all walk.
	DefaultMaxPages = 100
)

// Identifiable is implemented by every billing record so the fetcher can
// advance the cursor to the last item of each page.
type Identifiable interface {
	ItemID() string
}

// Page is one bounded batch from a paginated list endpoint. It is transient:
// consumed by FetchAll immediately, never persisted.
type Page[T Identifiable] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// PageFunc requests a single page. startingAfter is the identifier of the
// last item of the previous page, empty on the first request.
type PageFunc[T Identifiable] func(ctx context.Context, startingAfter string, limit int) (Page[T], error)

// FetchOptions configures FetchAll. The zero value selects the defaults.
type FetchOptions struct {
	PageSize int
	MaxPages int
	Retry    RetryOptions
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// FetchAll walks a cursor-paginated list endpoint and returns every item in
// the order the platform produced them. Each page request goes through
// Execute, so transient failures are retried per the fetch options.
//
// The walk stops when the platform reports no more pages, when an empty page
// arrives despite has_more (a malformed-cursor guard), or when the page
// ceiling is reached. Hitting the ceiling logs a truncation warning and
// returns the bounded snapshot; it is not an error. A page failure that
// survives its retries aborts the walk and discards everything accumulated.
func FetchAll[T Identifiable](ctx context.Context, fetch PageFunc[T], opts FetchOptions) ([]T, error) {
	opts = opts.withDefaults()

	var (
		items   []T
		cursor  string
		pages   int
		hasMore = true
	)

	for hasMore && pages < opts.MaxPages {
		page, err := Execute(ctx, func() (Page[T], error) {
			return fetch(ctx, cursor, opts.PageSize)
		}, opts.Retry)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", pages+1, err)
		}
		pages++

		if len(page.Data) == 0 {
			if page.HasMore {
				slog.Warn("empty page with has_more set, stopping pagination",
					"page", pages,
					"cursor", cursor)
			}
			return items, nil
		}

		items = append(items, page.Data...)
		cursor = page.Data[len(page.Data)-1].ItemID()
		hasMore = page.HasMore
	}

	if hasMore {
		slog.Warn("pagination stopped at page ceiling, result is a bounded snapshot",
			"max_pages", opts.MaxPages,
			"items", len(items))
	}
	return items, nil
}
