package runner

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/keclang/kecc-acceptor/types"
)

// runParallel executes pipelines on a bounded worker pool. The only shared
// mutable resource is the filesystem, and every pipeline owns its working
// directory exclusively, so units are independent. A fatal error on any
// worker cancels the remaining ones.
//
// Results are collected by unit index so the summary keeps the catalog's
// deterministic order regardless of completion order.
func (r *Runner) runParallel(ctx context.Context, units []Unit) ([]*types.TestResult, error) {
	results := make([]*types.TestResult, len(units))

	p := pool.New().
		WithErrors().
		WithFirstError().
		WithMaxGoroutines(r.cfg.Concurrency).
		WithContext(ctx).
		WithCancelOnError()

	for i, unit := range units {
		i, unit := i, unit
		p.Go(func(ctx context.Context) error {
			result, err := r.RunUnit(ctx, unit)
			if err != nil {
				return err
			}
			results[i] = result
			if r.cfg.OnResult != nil {
				r.cfg.OnResult(result)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
