package graph

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrRecorderClosed is returned by Record after Close.
var ErrRecorderClosed = errors.New("recorder is closed")

// Recorder persists vertex records.
//
// Implementations must be safe for concurrent use and must never interleave
// the output of two records.
type Recorder interface {
	// Record appends rec to the sink. A non-nil error is fatal to the run.
	Record(rec VertexRecord) error
}

// LogRecorder writes records in the plain-text log format.
type LogRecorder struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewLogRecorder returns a LogRecorder appending to w.
func NewLogRecorder(w io.Writer) *LogRecorder {
	return &LogRecorder{w: w}
}

// Record renders rec and writes it with a single Write call while holding
// the recorder lock, so concurrent records never interleave.
func (r *LogRecorder) Record(rec VertexRecord) error {
	block := Format(rec)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if _, err := io.WriteString(r.w, block); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", rec.Source, err)
	}
	return nil
}

// Close stops the recorder. It does not close the underlying writer.
func (r *LogRecorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Format renders rec as one log block including the terminating blank line.
func Format(rec VertexRecord) string {
	var sb strings.Builder
	writeEntry(&sb, "", rec.Source)
	for _, n := range rec.Neighbors {
		writeEntry(&sb, " |-", n)
	}
	sb.WriteString("\n")
	return sb.String()
}

func writeEntry(sb *strings.Builder, prefix, pageURL string) {
	sb.WriteString(prefix)
	sb.WriteString(Topic(pageURL))
	sb.WriteString(" - ")
	sb.WriteString(pageURL)
	sb.WriteString("\n")
}

// MultiRecorder records to several recorders in order.
// It stops at the first error.
type MultiRecorder struct {
	mu        sync.Mutex
	recorders []Recorder
}

// NewMultiRecorder returns a Recorder that fans out to recorders.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// Record passes rec to every recorder. The whole fan-out is one critical
// section so all sinks see records in the same order.
func (m *MultiRecorder) Record(rec VertexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.recorders {
		if err := r.Record(rec); err != nil {
			return err
		}
	}
	return nil
}
