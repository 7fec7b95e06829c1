package session

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runGenerator runs loops as one group: the first to fail cancels the rest
// and the group returns once all have stopped.
func runGenerator(ctx context.Context, loops ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		g.Go(func() error { return loop(gctx) })
	}
	return g.Wait()
}

// sleep waits for d or until ctx is done, whichever is first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
