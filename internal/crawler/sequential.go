package crawler

import (
	"context"
	"time"
)

// Sequential crawls breadth-first on the calling goroutine.
type Sequential struct {
	engine *Engine
}

// NewSequential returns a Sequential scheduler driving engine.
func NewSequential(engine *Engine) *Sequential {
	return &Sequential{engine: engine}
}

// Crawl visits every page reachable from seed in BFS order.
// It returns when the queue of claimed-but-unfetched pages is empty.
func (s *Sequential) Crawl(ctx context.Context, seed string) (Stats, error) {
	start := time.Now()
	s.engine.logger.Info("starting sequential crawl", "seed", seed)

	s.engine.claimSeed(seed)
	queue := []string{seed}
	enqueue := func(u string) {
		queue = append(queue, u)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return s.engine.stats(time.Since(start)), err
		}

		pageURL := queue[0]
		queue[0] = ""
		queue = queue[1:]

		if err := s.engine.visit(ctx, pageURL, enqueue); err != nil {
			return s.engine.stats(time.Since(start)), err
		}
	}

	stats := s.engine.stats(time.Since(start))
	s.engine.logger.Info("sequential crawl complete",
		"pages", stats.Recorded,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}
