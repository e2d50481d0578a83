package report

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/sitegraph/internal/crawler"
	"github.com/nao1215/sitegraph/internal/graph"
)

// Run states reported in Summary.Status.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Default Collector limits.
const (
	DefaultHubLimit    = 10
	DefaultFailedLimit = 20
)

// Hub is a page ranked by how many new links it contributed.
type Hub struct {
	URL       string `json:"url"`
	Label     string `json:"label"`
	OutDegree int    `json:"outDegree"`
}

// Run describes the crawl a Summary is about.
type Run struct {
	ID        string
	Seed      string
	BasePath  string
	Workers   int
	StartedAt time.Time
	Output    string
}

// Summary is the outcome of one crawl run.
type Summary struct {
	RunID     string    `json:"runId,omitempty"`
	Seed      string    `json:"seed"`
	SeedLabel string    `json:"seedLabel"`
	BasePath  string    `json:"basePath"`
	Mode      string    `json:"mode"`
	Workers   int       `json:"workers"`
	StartedAt time.Time `json:"startedAt"`
	Output    string    `json:"output"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	Claimed       int `json:"claimed"`
	Recorded      int `json:"recorded"`
	FailedFetches int `json:"failedFetches"`
	Edges         int `json:"edges"`

	// Abandoned counts pages claimed but never recorded; non-zero only
	// when the run was cancelled or failed.
	Abandoned int `json:"abandoned"`

	Elapsed        time.Duration `json:"-"`
	ElapsedMS      int64         `json:"elapsedMs"`
	PagesPerSecond float64       `json:"pagesPerSecond"`

	TopHubs     []Hub    `json:"topHubs,omitempty"`
	FailedPages []string `json:"failedPages,omitempty"`
}

// NewSummary builds the Summary of a run from the scheduler's result.
// collector may be nil.
func NewSummary(run Run, stats crawler.Stats, crawlErr error, collector *Collector) *Summary {
	s := &Summary{
		RunID:         run.ID,
		Seed:          run.Seed,
		SeedLabel:     graph.Label(run.Seed),
		BasePath:      run.BasePath,
		Mode:          mode(run.Workers),
		Workers:       run.Workers,
		StartedAt:     run.StartedAt,
		Output:        run.Output,
		Status:        status(crawlErr),
		Claimed:       stats.Claimed,
		Recorded:      stats.Recorded,
		FailedFetches: stats.FailedFetches,
		Edges:         stats.Edges,
		Abandoned:     stats.Claimed - stats.Recorded,
		Elapsed:       stats.Elapsed,
		ElapsedMS:     stats.Elapsed.Milliseconds(),
	}
	if crawlErr != nil {
		s.Error = crawlErr.Error()
	}
	if secs := stats.Elapsed.Seconds(); secs > 0 {
		s.PagesPerSecond = float64(stats.Recorded) / secs
	}
	if collector != nil {
		s.TopHubs = collector.TopHubs()
		s.FailedPages = collector.FailedPages()
	}
	return s
}

func mode(workers int) string {
	if workers <= 0 {
		return "sequential"
	}
	return "pool"
}

func status(err error) string {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Collector is a graph.Recorder that keeps the pages with the most
// outgoing edges and a sample of pages whose fetch failed.
type Collector struct {
	mu          sync.Mutex
	hubLimit    int
	failedLimit int
	hubs        []Hub
	failed      []string
}

// NewCollector returns a Collector keeping at most hubLimit hubs and
// failedLimit failed pages. Non-positive limits use the defaults.
func NewCollector(hubLimit, failedLimit int) *Collector {
	if hubLimit <= 0 {
		hubLimit = DefaultHubLimit
	}
	if failedLimit <= 0 {
		failedLimit = DefaultFailedLimit
	}
	return &Collector{hubLimit: hubLimit, failedLimit: failedLimit}
}

// Record implements graph.Recorder.
func (c *Collector) Record(rec graph.VertexRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.FetchFailed && len(c.failed) < c.failedLimit {
		c.failed = append(c.failed, rec.Source)
	}
	if len(rec.Neighbors) == 0 {
		return nil
	}

	c.hubs = append(c.hubs, Hub{
		URL:       rec.Source,
		Label:     graph.Label(rec.Source),
		OutDegree: len(rec.Neighbors),
	})
	slices.SortFunc(c.hubs, compareHubs)
	if len(c.hubs) > c.hubLimit {
		c.hubs = c.hubs[:c.hubLimit]
	}
	return nil
}

// TopHubs returns the hubs by descending out-degree, ties by URL.
func (c *Collector) TopHubs() []Hub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.hubs)
}

// FailedPages returns the failed pages in recording order.
func (c *Collector) FailedPages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.failed)
}

func compareHubs(a, b Hub) int {
	if n := cmp.Compare(b.OutDegree, a.OutDegree); n != 0 {
		return n
	}
	return cmp.Compare(a.URL, b.URL)
}

var _ graph.Recorder = (*Collector)(nil)
