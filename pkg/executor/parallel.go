package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// RunParallel spreads records over sessions. Each session is a worker that
// pulls from a shared queue and runs its records sequentially; results come
// back in record order. Sessions should share a RunID and Sequence.
func (r *Runner) RunParallel(ctx context.Context, sessions []*Session, sc Scenario, records []core.TestRecord) ([]core.ExecutionResult, error) {
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no sessions available")
	}
	if len(sessions) == 1 {
		return r.Run(ctx, sessions[0], sc, records), nil
	}

	queue := make(chan int, len(records))
	for i := range records {
		queue <- i
	}
	close(queue)

	results := make([]core.ExecutionResult, len(records))
	var stopped atomic.Bool
	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			for i := range queue {
				// Each index is written by exactly one worker.
				results[i] = r.next(ctx, s, sc, records, i, &stopped)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
