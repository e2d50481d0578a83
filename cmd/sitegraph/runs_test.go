package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/graph"
)

// seedDB stores one completed run with two records and returns its ID.
func seedDB(t *testing.T, dir string) string {
	t.Helper()

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := t.Context()
	id, err := db.BeginRun(ctx, "https://en.wikipedia.org/wiki/Graph", "/wiki", 4)
	if err != nil {
		t.Fatal(err)
	}
	records := []graph.VertexRecord{
		{
			Source:    "https://en.wikipedia.org/wiki/Graph",
			Neighbors: []string{"https://en.wikipedia.org/wiki/Vertex"},
			Digest:    strings.Repeat("ab", 32),
		},
		{Source: "https://en.wikipedia.org/wiki/Vertex", FetchFailed: true},
	}
	for _, rec := range records {
		if err := db.InsertVertex(ctx, id, rec); err != nil {
			t.Fatal(err)
		}
	}
	totals := database.RunTotals{Claimed: 2, Recorded: 2, FailedFetches: 1, Edges: 1, Elapsed: 1500 * time.Millisecond}
	if err := db.FinishRun(ctx, id, database.RunCompleted, totals); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestNewRunsCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunsCmd()
	if cmd.Use != "runs [run-id]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}
	for _, name := range []string{"db-dir", "delete", "json"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q", name)
		}
	}
}

func TestRunsList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	id := seedDB(t, dir)

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		out, _, err := runRoot(t, "runs", "--db-dir", dir)
		if err != nil {
			t.Fatalf("runs failed: %v", err)
		}
		for _, want := range []string{"Stored runs (1):", id[:8], "completed", "https://en.wikipedia.org/wiki/Graph"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		out, _, err := runRoot(t, "runs", "--db-dir", dir, "--json")
		if err != nil {
			t.Fatalf("runs failed: %v", err)
		}
		var runs []runJSON
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		r := runs[0]
		if r.ID != id || r.Workers != 4 || r.Recorded != 2 || r.FailedFetches != 1 || r.ElapsedMS != 1500 {
			t.Errorf("unexpected run: %+v", r)
		}
		if r.FinishedAt == nil {
			t.Error("expected finishedAt to be set")
		}
	})
}

func TestRunsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	out, _, err := runRoot(t, "runs", "--db-dir", dir)
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "No crawl runs found") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunsReplay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	id := seedDB(t, dir)

	out, _, err := runRoot(t, "runs", "--db-dir", dir, id[:6])
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}

	want := "Graph - https://en.wikipedia.org/wiki/Graph\n" +
		" |-Vertex - https://en.wikipedia.org/wiki/Vertex\n" +
		"\n" +
		"Vertex - https://en.wikipedia.org/wiki/Vertex\n" +
		"\n"
	if out != want {
		t.Errorf("replay mismatch\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestRunsDelete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	id := seedDB(t, dir)

	out, _, err := runRoot(t, "runs", "--db-dir", dir, "--delete", id)
	if err != nil {
		t.Fatalf("runs --delete failed: %v", err)
	}
	if !strings.Contains(out, "Deleted run "+id) {
		t.Errorf("unexpected output: %q", out)
	}

	_, _, err = runRoot(t, "runs", "--db-dir", dir, id)
	if !errors.Is(err, database.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}
}

func TestRunsErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()
		_, _, err := runRoot(t, "runs", "--db-dir", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "failed to open database") {
			t.Errorf("expected open error, got %v", err)
		}
	})

	t.Run("delete requires id", func(t *testing.T) {
		t.Parallel()
		_, _, err := runRoot(t, "runs", "--db-dir", t.TempDir(), "--delete")
		if err == nil || !strings.Contains(err.Error(), "requires a run ID") {
			t.Errorf("expected missing ID error, got %v", err)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		seedDB(t, dir)
		_, _, err := runRoot(t, "runs", "--db-dir", dir, "zzzz")
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("too many arguments", func(t *testing.T) {
		t.Parallel()
		_, _, err := runRoot(t, "runs", "a", "b")
		if err == nil {
			t.Error("expected argument error")
		}
	})
}
