package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// fanOut runs fn over every item with at most limit in flight, and returns
// results and errors indexed by input position. A failed item leaves its
// zero value in results[i] and the error in errs[i]; callers decide whether
// a hole is fatal.
func fanOut[T, R any](ctx context.Context, items []T, limit int64, fn func(ctx context.Context, idx int, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(limit)
	var wg sync.WaitGroup
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx], errs[idx] = fn(ctx, idx, it)
		}(i, item)
	}
	wg.Wait()
	return results, errs
}
