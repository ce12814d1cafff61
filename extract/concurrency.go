package extract

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// boundedEach runs fn(i) for every index in [0, n) with at most concurrency
// goroutines in flight at once, stopping at the first error (errgroup
// semantics) while still letting already-started work finish.
func boundedEach(ctx context.Context, n, concurrency int, fn func(ctx context.Context, i int) error) error {
	if concurrency <= 0 {
		concurrency = 8
	}
	sem := make(chan struct{}, concurrency)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < n; i++ {
		i := i
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
