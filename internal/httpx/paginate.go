package httpx

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/shared"
)

// Page is one slice of a paginated collection plus the URL of the next page.
// An empty Next ends the walk.
type Page[T any] struct {
	Items []T
	Next  string
}

// ParseFunc extracts a page from a raw response. Each service defines one per
// paginated endpoint, since envelope shapes differ between APIs.
type ParseFunc[T any] func(*Response) (Page[T], error)

// Paginator walks a cursor-paginated collection page by page. Failed page
// fetches are retried by the underlying Client; if a page still fails after
// retries the walk stops and the error wraps [shared.ErrFetchFailed]. The
// paginator itself keeps no progress state, so a fresh walk always restarts
// from the first page.
type Paginator[T any] struct {
	Client *Client
	First  string
	Parse  ParseFunc[T]
}

// Each invokes fn for every item in order, fetching pages lazily.
func (p *Paginator[T]) Each(ctx context.Context, fn func(T) error) error {
	next := p.First
	for page := 0; next != ""; page++ {
		resp, err := p.Client.Get(ctx, next)
		if err != nil {
			return fmt.Errorf("%w: page %d (%s): %v", shared.ErrFetchFailed, page, next, err)
		}

		parsed, err := p.Parse(resp)
		if err != nil {
			return fmt.Errorf("%w: page %d (%s): %v", shared.ErrFetchFailed, page, next, err)
		}

		for _, item := range parsed.Items {
			if err := fn(item); err != nil {
				return err
			}
		}

		next = parsed.Next
	}
	return nil
}

// All collects every item across all pages in order.
func (p *Paginator[T]) All(ctx context.Context) ([]T, error) {
	items := []T{}
	err := p.Each(ctx, func(item T) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
