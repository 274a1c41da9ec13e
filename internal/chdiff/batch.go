package chdiff

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one unit of work in a batch.
type Outcome[T any] struct {
	Dir    string
	Result T
	Err    error
}

// RunBatch applies fn to every directory with at most parallel calls in
// flight. Outcomes are returned in argument order. A failing directory never
// stops the others; only a cancelled context skips the remaining ones, which
// then carry the context error.
func RunBatch[T any](ctx context.Context, parallel int, dirs []string, fn func(ctx context.Context, dir string) (T, error)) []Outcome[T] {
	if parallel <= 0 {
		parallel = 1
	}
	outcomes := make([]Outcome[T], len(dirs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, dir := range dirs {
		outcomes[i].Dir = dir
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		g.Go(func() error {
			res, err := fn(ctx, dir)
			outcomes[i].Result = res
			outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// FailedCount counts outcomes that carry an error.
func FailedCount[T any](outcomes []Outcome[T]) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
