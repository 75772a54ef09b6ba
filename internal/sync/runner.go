package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner drives periodic reconciliation. One Runner owns the "is a run in
// progress" state: runs never overlap because the loop is single-threaded.
type Runner struct {
	rec      *Reconciler
	fetcher  Fetcher
	log      *zap.Logger
	interval time.Duration
}

// NewRunner creates a Runner that reconciles every interval.
func NewRunner(rec *Reconciler, fetcher Fetcher, log *zap.Logger, interval time.Duration) *Runner {
	return &Runner{rec: rec, fetcher: fetcher, log: log, interval: interval}
}

// Run fetches and reconciles until ctx is canceled. The first run happens
// immediately, not after the first interval.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.RunOnce(ctx); err != nil {
		r.log.Error("reconciliation failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			r.log.Info("sync runner stopping")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("reconciliation failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single fetch-and-reconcile cycle. A fetch error aborts
// the cycle before any store mutation; the next tick retries.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	batch, complete, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	return r.rec.Reconcile(ctx, batch, complete)
}
