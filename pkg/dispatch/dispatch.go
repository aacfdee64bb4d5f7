// Package dispatch is the bounded-concurrency fan-out primitive. It runs
// one call per argument over a fixed-size worker pool and keeps failing
// calls isolated from their siblings.
package dispatch

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
)

// Result pairs one fan-out argument with the outcome of its call.
type Result[A any] struct {
	Arg A
	Err error
}

// ForEach calls fn once per element of args with at most workers calls
// outstanding. Every call gets its own Result; an error never cancels or
// fails the other calls. Context cancellation stops unstarted calls, which
// report the context error.
func ForEach[A any](ctx context.Context, workers int, args []A, fn func(context.Context, A) error) []Result[A] {
	if len(args) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]Result[A], len(args))
	for i, arg := range args {
		results[i] = Result[A]{Arg: arg}
	}

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for i := range args {
		i := i
		group.Submit(func() {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}

			results[i].Err = fn(ctx, results[i].Arg)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		// Task panics and the like; individual errors are already captured.
		for i := range results {
			if results[i].Err == nil {
				results[i].Err = err
			}
		}
	}

	return results
}

// FirstError returns the first captured error, for callers that do not
// want failure suppression.
func FirstError[A any](results []Result[A]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}

	return nil
}
