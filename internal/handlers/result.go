// Package handlers loads page data and shapes it into template view models.
package handlers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result records one content call. A failed call leaves Value at its zero value.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// load runs fn on g and stores its outcome in dst. It always returns nil to the
// group so one failed fetch never cancels its siblings.
func load[T any](ctx context.Context, g *errgroup.Group, dst *Result[T], fn func(context.Context) (T, error)) {
	g.Go(func() error {
		v, err := fn(ctx)
		*dst = Result[T]{Value: v, Err: err}
		return nil
	})
}
