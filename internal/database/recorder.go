package database

import (
	"context"

	"github.com/nao1215/sitegraph/internal/graph"
)

// Recorder stores every record of one run in a GraphDB.
// Each record is written in its own transaction.
type Recorder struct {
	ctx   context.Context //nolint:containedctx // graph.Recorder carries no context
	db    *GraphDB
	runID string
}

// NewRecorder returns a graph.Recorder appending to runID.
// ctx applies to every insert; pass a context that outlives cancellation
// of the crawl if records in flight should still be stored.
func NewRecorder(ctx context.Context, db *GraphDB, runID string) *Recorder {
	return &Recorder{ctx: ctx, db: db, runID: runID}
}

// RunID returns the run this recorder appends to.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record implements graph.Recorder.
func (r *Recorder) Record(rec graph.VertexRecord) error {
	return r.db.InsertVertex(r.ctx, r.runID, rec)
}

var _ graph.Recorder = (*Recorder)(nil)
