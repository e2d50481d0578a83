package crawler

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/sitegraph/internal/frontier"
	"github.com/nao1215/sitegraph/internal/graph"
)

// Scheduler runs one crawl from a seed URL to completion.
type Scheduler interface {
	// Crawl blocks until every page reachable from seed has been recorded,
	// the context is cancelled, or recording fails.
	Crawl(ctx context.Context, seed string) (Stats, error)
}

// NewScheduler returns the sequential scheduler when workers is zero and a
// worker pool of that size otherwise.
func NewScheduler(engine *Engine, workers int) Scheduler {
	if workers <= 0 {
		return NewSequential(engine)
	}
	return NewPool(engine, workers)
}

// Stats summarizes a crawl run.
type Stats struct {
	// Claimed is the number of URLs claimed, seed included.
	Claimed int

	// Recorded is the number of vertex records written.
	Recorded int

	// FailedFetches is the number of recorded pages whose fetch failed.
	FailedFetches int

	// Edges is the total number of neighbor entries written.
	Edges int

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Engine holds the collaborators and shared state of one crawl run: the
// page source, the link extractor, the dedup registry and the recorder.
// Both schedulers drive pages through Engine.visit.
//
// An Engine serves a single run. Its registry is never reset, so reusing it
// for a second seed would skip everything the first run claimed.
type Engine struct {
	source    Source
	extractor Extractor
	recorder  graph.Recorder
	claimer   frontier.Claimer
	logger    *slog.Logger

	origin   string
	basePath string

	claimed  atomic.Int64
	recorded atomic.Int64
	failed   atomic.Int64
	edges    atomic.Int64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSite sets the site origin (scheme://host) and the path prefix links
// must start with.
func WithSite(origin, basePath string) EngineOption {
	return func(e *Engine) {
		e.origin = strings.TrimSuffix(origin, "/")
		e.basePath = basePath
	}
}

// WithClaimer replaces the default in-memory registry.
func WithClaimer(c frontier.Claimer) EngineOption {
	return func(e *Engine) {
		e.claimer = c
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine for one run.
func NewEngine(source Source, extractor Extractor, recorder graph.Recorder, opts ...EngineOption) *Engine {
	e := &Engine{
		source:    source,
		extractor: extractor,
		recorder:  recorder,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.claimer == nil {
		e.claimer = frontier.New()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// claimSeed claims the start URL. The seed is crawled whether or not the
// claim succeeds; it only fails when an injected registry already holds it.
func (e *Engine) claimSeed(seed string) {
	e.claim(seed)
}

func (e *Engine) claim(pageURL string) bool {
	if !e.claimer.TryClaim(pageURL) {
		return false
	}
	e.claimed.Add(1)
	return true
}

// eligible is the literal prefix test every candidate must pass before it
// may be claimed.
func (e *Engine) eligible(candidate string) bool {
	return strings.HasPrefix(candidate, e.origin+e.basePath)
}

// visit fetches pageURL, claims its eligible unseen candidates and records
// the vertex. discovered is called for each newly claimed neighbor right
// after its claim and before the next candidate is considered.
//
// A cancelled context abandons the page without recording it.
func (e *Engine) visit(ctx context.Context, pageURL string, discovered func(string)) error {
	content, err := e.source.Fetch(ctx, pageURL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	rec := graph.VertexRecord{Source: pageURL}
	if err != nil {
		e.logger.Debug("fetch failed", "url", pageURL, "error", err)
		rec.FetchFailed = true
		content = ""
	} else {
		sum := sha3.Sum256([]byte(content))
		rec.Digest = hex.EncodeToString(sum[:])
	}

	for _, candidate := range e.extractor.Extract(content, e.basePath, e.origin) {
		if !e.eligible(candidate) || !e.claim(candidate) {
			continue
		}
		rec.Neighbors = append(rec.Neighbors, candidate)
		discovered(candidate)
	}

	if err := e.recorder.Record(rec); err != nil {
		return fmt.Errorf("failed to record %s: %w", pageURL, err)
	}

	e.recorded.Add(1)
	e.edges.Add(int64(len(rec.Neighbors)))
	if rec.FetchFailed {
		e.failed.Add(1)
	}
	e.logger.Debug("page recorded",
		"url", pageURL,
		"neighbors", len(rec.Neighbors),
		"fetch_failed", rec.FetchFailed,
	)
	return nil
}

// stats snapshots the run counters.
func (e *Engine) stats(elapsed time.Duration) Stats {
	return Stats{
		Claimed:       int(e.claimed.Load()),
		Recorded:      int(e.recorded.Load()),
		FailedFetches: int(e.failed.Load()),
		Edges:         int(e.edges.Load()),
		Elapsed:       elapsed,
	}
}
