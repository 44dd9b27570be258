// Package reqpool is the process-wide background request pool: prefetch
// reads and parallel multi-column row seeks are dispatched here instead
// of on the caller's own goroutine, so a Row read touching five columns
// issues five concurrent Engine.Get calls and joins on whichever
// finishes last. Grounded on env.Pool's semaphore-gated worker model,
// generalized from fire-and-forget background work to request/response
// work a caller waits on.
package reqpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many concurrent background requests (prefetch reads,
// parallel column seeks) run at once, independent of env.Pools which is
// reserved for flush/compaction work.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a Pool allowing up to maxConcurrent requests in flight.
func New(maxConcurrent int) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Request is one unit of work submitted to Join: a function returning a
// typed result and an error.
type Request[T any] func(ctx context.Context) (T, error)

// Join runs every request concurrently, bounded by the pool's
// concurrency limit, and returns all results in submission order. It
// returns the first error encountered and cancels the context passed to
// every other in-flight request, the fan-out/fan-in shape Row uses to
// seek a key across every configured column at once.
func Join[T any](ctx context.Context, p *Pool, reqs []Request[T]) ([]T, error) {
	results := make([]T, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.sem.Release(1)
			res, err := req(gctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Prefetch submits fn to run in the background without the caller
// waiting on its result, used to warm the block cache for a key range a
// caller is about to scan sequentially. Errors are dropped; prefetch is
// advisory only.
func (p *Pool) Prefetch(ctx context.Context, fn func(ctx context.Context)) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	go func() {
		defer p.sem.Release(1)
		fn(ctx)
	}()
}
