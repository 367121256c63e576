package enrich

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc receives cumulative completed/total counts after each group.
type ProgressFunc func(completed, total int)

// BatchResult summarizes one bulk enrichment run.
type BatchResult struct {
	Succeeded int
	Failed    int
}

// EnrichBatch processes lead ids in fixed-size concurrent groups, awaiting
// each group fully before starting the next. One lead's failure never stops
// its group or the groups after it.
func (o *Orchestrator) EnrichBatch(ctx context.Context, ids []string, groupSize int, progress ProgressFunc) BatchResult {
	if groupSize <= 0 {
		groupSize = 3
	}

	var succeeded, failed atomic.Int64
	completed := 0

	for start := 0; start < len(ids); start += groupSize {
		end := min(start+groupSize, len(ids))
		group := ids[start:end]

		g, gCtx := errgroup.WithContext(ctx)
		for _, id := range group {
			g.Go(func() error {
				if err := o.Enrich(gCtx, id); err != nil {
					failed.Add(1)
					zap.L().Warn("batch: lead failed",
						zap.String("lead_id", id),
						zap.Error(err),
					)
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		completed += len(group)
		if progress != nil {
			progress(completed, len(ids))
		}
		if ctx.Err() != nil {
			break
		}
	}

	return BatchResult{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
}
