package crawler

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/nao1215/sitegraph/internal/graph"
)

const (
	testOrigin   = "https://site.test"
	testBasePath = "/wiki"
)

// page returns the absolute URL of a page on the test site.
func page(name string) string {
	return testOrigin + testBasePath + "/" + name
}

// stubSite serves a fixed link graph. Fetch returns "page:<url>" and
// Extract maps that content back to the page's links, so no HTML is
// involved.
type stubSite struct {
	links   map[string][]string
	failing map[string]bool
	// gates holds channels a fetch of the given URL waits on.
	gates map[string]<-chan struct{}

	mu      sync.Mutex
	fetched []string
}

func newStubSite(links map[string][]string) *stubSite {
	return &stubSite{
		links:   links,
		failing: make(map[string]bool),
		gates:   make(map[string]<-chan struct{}),
	}
}

func (s *stubSite) Fetch(ctx context.Context, pageURL string) (string, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, pageURL)
	gate := s.gates[pageURL]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.failing[pageURL] {
		return "", &StatusError{URL: pageURL, StatusCode: 500}
	}
	return "page:" + pageURL, nil
}

func (s *stubSite) Extract(content, _, _ string) []string {
	if content == "" {
		return nil
	}
	return s.links[strings.TrimPrefix(content, "page:")]
}

func (s *stubSite) fetchOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

// memRecorder keeps records in memory. onRecord, if set, runs after each
// record is stored.
type memRecorder struct {
	mu       sync.Mutex
	recs     []graph.VertexRecord
	err      error
	onRecord func(graph.VertexRecord)
}

func (m *memRecorder) Record(rec graph.VertexRecord) error {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return m.err
	}
	m.recs = append(m.recs, rec)
	hook := m.onRecord
	m.mu.Unlock()
	if hook != nil {
		hook(rec)
	}
	return nil
}

func (m *memRecorder) records() []graph.VertexRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]graph.VertexRecord(nil), m.recs...)
}

// byURL indexes records by source URL. Duplicate sources are reported via
// the second return value.
func byURL(recs []graph.VertexRecord) (map[string]graph.VertexRecord, []string) {
	out := make(map[string]graph.VertexRecord, len(recs))
	var dups []string
	for _, r := range recs {
		if _, ok := out[r.Source]; ok {
			dups = append(dups, r.Source)
		}
		out[r.Source] = r
	}
	return out, dups
}

// bfs is a textbook breadth-first search over links, restricted to the test
// site prefix. It returns the visit order and, for each page, the neighbors
// it discovers first.
func bfs(links map[string][]string, seed string) ([]string, map[string][]string) {
	seen := map[string]bool{seed: true}
	order := []string{}
	edges := map[string][]string{}
	queue := []string{seed}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		edges[u] = nil
		for _, v := range links[u] {
			if !strings.HasPrefix(v, testOrigin+testBasePath) || seen[v] {
				continue
			}
			seen[v] = true
			edges[u] = append(edges[u], v)
			queue = append(queue, v)
		}
	}
	return order, edges
}

func newTestEngine(site *stubSite, rec graph.Recorder, opts ...EngineOption) *Engine {
	opts = append([]EngineOption{
		WithSite(testOrigin, testBasePath),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	return NewEngine(site, site, rec, opts...)
}
