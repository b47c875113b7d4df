package utils

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunTasks runs fn for every index in [0, n) with at most limit running at
// once, and waits for all of them. Each task's error (or recovered panic) is
// captured in its own slot; one failure never cancels the others.
func RunTasks(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("task %d panicked: %v", i, r)
				}
			}()
			if cerr := ctx.Err(); cerr != nil {
				errs[i] = cerr
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}

	g.Wait()
	return errs
}

// CountErrors returns how many slots hold a non-nil error.
func CountErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
