package crawler

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// TestSequentialCrawl tests the breadth-first scheduler.
func TestSequentialCrawl(t *testing.T) {
	t.Parallel()

	t.Run("visits pages in breadth-first order", func(t *testing.T) {
		t.Parallel()

		links := map[string][]string{
			page("A"): {page("B"), page("C")},
			page("B"): {page("D"), page("C")},
			page("C"): {page("E"), page("A")},
			page("D"): {page("A"), page("F")},
			page("E"): {},
			page("F"): {page("B")},
		}
		site := newStubSite(links)
		rec := &memRecorder{}

		stats, err := NewSequential(newTestEngine(site, rec)).Crawl(context.Background(), page("A"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantOrder, wantEdges := bfs(links, page("A"))
		if got := site.fetchOrder(); !slices.Equal(got, wantOrder) {
			t.Errorf("fetch order = %v, want %v", got, wantOrder)
		}

		recs := rec.records()
		for i, r := range recs {
			if r.Source != wantOrder[i] {
				t.Errorf("record %d source = %s, want %s", i, r.Source, wantOrder[i])
			}
			if !slices.Equal(r.Neighbors, wantEdges[r.Source]) {
				t.Errorf("neighbors of %s = %v, want %v", r.Source, r.Neighbors, wantEdges[r.Source])
			}
		}

		if stats.Claimed != len(wantOrder) || stats.Recorded != len(wantOrder) {
			t.Errorf("expected %d claimed and recorded, got %+v", len(wantOrder), stats)
		}
	})

	t.Run("end-to-end scenario", func(t *testing.T) {
		t.Parallel()

		site := newStubSite(map[string][]string{
			page("A"): {page("B"), page("C")},
			page("B"): {page("C")},
			page("C"): {},
		})
		rec := &memRecorder{}

		if _, err := NewSequential(newTestEngine(site, rec)).Crawl(context.Background(), page("A")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recs := rec.records()
		want := [][]string{{page("B"), page("C")}, nil, nil}
		if len(recs) != 3 {
			t.Fatalf("expected 3 records, got %d", len(recs))
		}
		for i, r := range recs {
			if !slices.Equal(r.Neighbors, want[i]) {
				t.Errorf("record %s neighbors = %v, want %v", r.Source, r.Neighbors, want[i])
			}
		}
	})

	t.Run("off-prefix candidates are never claimed", func(t *testing.T) {
		t.Parallel()

		offSite := "https://other.test/wiki/X"
		offPath := testOrigin + "/w/index.php"
		site := newStubSite(map[string][]string{
			page("A"): {offSite, page("B"), offPath},
			page("B"): {offPath},
		})
		rec := &memRecorder{}
		engine := newTestEngine(site, rec)

		if _, err := NewSequential(engine).Crawl(context.Background(), page("A")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, r := range rec.records() {
			for _, n := range r.Neighbors {
				if n == offSite || n == offPath {
					t.Errorf("off-prefix url %s listed as neighbor of %s", n, r.Source)
				}
			}
		}
		if slices.Contains(site.fetchOrder(), offSite) || slices.Contains(site.fetchOrder(), offPath) {
			t.Error("off-prefix url was fetched")
		}
	})

	t.Run("failed fetch is recorded with no neighbors", func(t *testing.T) {
		t.Parallel()

		site := newStubSite(map[string][]string{
			page("A"): {page("B")},
			page("B"): {page("C")},
		})
		site.failing[page("B")] = true
		rec := &memRecorder{}

		stats, err := NewSequential(newTestEngine(site, rec)).Crawl(context.Background(), page("A"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recs, _ := byURL(rec.records())
		b, ok := recs[page("B")]
		if !ok {
			t.Fatal("expected B to be recorded")
		}
		if !b.FetchFailed || len(b.Neighbors) != 0 || b.Digest != "" {
			t.Errorf("unexpected record for failed page: %+v", b)
		}
		if recs[page("A")].Digest == "" {
			t.Error("expected digest for fetched page")
		}
		if stats.FailedFetches != 1 {
			t.Errorf("expected 1 failed fetch, got %d", stats.FailedFetches)
		}
	})

	t.Run("recorder failure stops the crawl", func(t *testing.T) {
		t.Parallel()

		site := newStubSite(map[string][]string{page("A"): {page("B")}})
		boom := errors.New("disk full")
		rec := &memRecorder{err: boom}

		_, err := NewSequential(newTestEngine(site, rec)).Crawl(context.Background(), page("A"))
		if !errors.Is(err, boom) {
			t.Errorf("expected recorder error, got %v", err)
		}
		if len(site.fetchOrder()) != 1 {
			t.Errorf("expected crawl to stop after first page, fetched %v", site.fetchOrder())
		}
	})

	t.Run("cancelled context stops before fetching", func(t *testing.T) {
		t.Parallel()

		site := newStubSite(map[string][]string{page("A"): {}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewSequential(newTestEngine(site, &memRecorder{})).Crawl(ctx, page("A"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestNewScheduler tests scheduler selection.
func TestNewScheduler(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(newStubSite(nil), &memRecorder{})
	if _, ok := NewScheduler(engine, 0).(*Sequential); !ok {
		t.Error("expected sequential scheduler for zero workers")
	}
	if p, ok := NewScheduler(engine, 4).(*Pool); !ok || p.workers != 4 {
		t.Error("expected pool of 4 workers")
	}
}
