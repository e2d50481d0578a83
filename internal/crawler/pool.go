package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolStarted is returned by Start when the pool is already running.
	ErrPoolStarted = errors.New("worker pool already started")

	// ErrPoolNotStarted is returned by Wait before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
)

// Pool crawls with a fixed number of workers sharing one task queue.
//
// Every task is a page that has already been claimed. outstanding counts
// queued plus in-flight tasks: it goes up when a task is queued and down
// when that task has been recorded. The crawl is complete when it reaches
// zero, which can only happen with an empty queue.
//
// The queue is a slice rather than a buffered channel. It is bounded by the
// registry, since a URL is queued only right after its one successful
// claim, and workers can always enqueue without blocking. A fixed-capacity
// channel would deadlock once every worker is blocked on a full channel.
type Pool struct {
	engine  *Engine
	workers int

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []string
	outstanding int
	aborted     bool

	ctx     context.Context
	group   *errgroup.Group
	stop    func() bool
	started time.Time
}

// NewPool returns a Pool of the given size driving engine.
// Sizes below one are raised to one.
func NewPool(engine *Engine, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		engine:  engine,
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Crawl starts the pool on seed and waits for it to drain.
func (p *Pool) Crawl(ctx context.Context, seed string) (Stats, error) {
	if err := p.Start(ctx, seed); err != nil {
		return Stats{}, err
	}
	return p.Wait()
}

// Start claims seed, queues it and launches the workers. It does not block.
func (p *Pool) Start(ctx context.Context, seed string) error {
	p.mu.Lock()
	if p.group != nil {
		p.mu.Unlock()
		return ErrPoolStarted
	}
	g, gctx := errgroup.WithContext(ctx)
	p.ctx = ctx
	p.group = g
	p.started = time.Now()
	// Cancellation, from the caller or from a failing worker, must wake
	// workers parked on the condition variable.
	p.stop = context.AfterFunc(gctx, p.abort)
	p.mu.Unlock()

	p.engine.logger.Info("starting worker pool crawl",
		"seed", seed,
		"workers", p.workers,
	)

	p.engine.claimSeed(seed)
	p.push(seed)

	for range p.workers {
		g.Go(func() error {
			return p.work(gctx)
		})
	}
	return nil
}

// Wait blocks until the pool is quiescent (no queued and no in-flight
// task) or the run failed. A recorder error, or the cancellation of the
// context passed to Start, is returned; pages still queued at that point
// are abandoned.
func (p *Pool) Wait() (Stats, error) {
	p.mu.Lock()
	g := p.group
	p.mu.Unlock()
	if g == nil {
		return Stats{}, ErrPoolNotStarted
	}

	err := g.Wait()
	p.stop()
	if err == nil {
		err = p.ctx.Err()
	}

	stats := p.engine.stats(time.Since(p.started))
	if err != nil {
		p.engine.logger.Warn("worker pool crawl stopped",
			"pages", stats.Recorded,
			"abandoned", p.Outstanding(),
			"error", err,
		)
		return stats, err
	}
	p.engine.logger.Info("worker pool crawl complete",
		"pages", stats.Recorded,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

// Outstanding returns the number of queued plus in-flight tasks.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// work is the worker loop.
func (p *Pool) work(ctx context.Context) error {
	for {
		pageURL, ok := p.next()
		if !ok {
			return nil
		}
		err := p.engine.visit(ctx, pageURL, p.push)
		p.done()
		if err != nil {
			return err
		}
	}
}

// push queues a claimed page.
func (p *Pool) push(pageURL string) {
	p.mu.Lock()
	p.queue = append(p.queue, pageURL)
	p.outstanding++
	p.mu.Unlock()
	p.cond.Signal()
}

// next blocks until a task is available. It returns false once the pool is
// quiescent or aborted.
func (p *Pool) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && p.outstanding > 0 && !p.aborted {
		p.cond.Wait()
	}
	if p.aborted || len(p.queue) == 0 {
		return "", false
	}

	pageURL := p.queue[0]
	p.queue[0] = ""
	p.queue = p.queue[1:]
	return pageURL, true
}

// done marks one task finished and wakes everyone on quiescence.
func (p *Pool) done() {
	p.mu.Lock()
	p.outstanding--
	quiescent := p.outstanding == 0
	p.mu.Unlock()
	if quiescent {
		p.cond.Broadcast()
	}
}

func (p *Pool) abort() {
	p.mu.Lock()
	p.aborted = true
	p.mu.Unlock()
	p.cond.Broadcast()
}
