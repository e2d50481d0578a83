package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitegraph/internal/graph"
)

// FileName is the database file name inside the database directory.
const FileName = "sitegraph.db"

var (
	// ErrRunNotFound is returned when no run matches the given ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)

// RunStatus is the state of a stored run.
type RunStatus string

// Run states.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// GraphDB is SQLite storage for crawl runs and their link graphs.
type GraphDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures GraphDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the GraphDB in dbDir.
func Open(dbDir string, opts Options) (*GraphDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer. One connection also serializes the
	// per-record transactions coming from concurrent workers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	gdb := &GraphDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := gdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return gdb, nil
}

// Path returns the database file path.
func (g *GraphDB) Path() string {
	return g.dbPath
}

// Close closes the database connection.
func (g *GraphDB) Close() error {
	return g.db.Close()
}

func (g *GraphDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		base_path TEXT NOT NULL,
		workers INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		claimed INTEGER NOT NULL DEFAULT 0,
		recorded INTEGER NOT NULL DEFAULT 0,
		failed_fetches INTEGER NOT NULL DEFAULT 0,
		edges INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- A URL is recorded at most once per run.
	CREATE TABLE IF NOT EXISTS vertices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		fetch_failed INTEGER NOT NULL DEFAULT 0,
		digest TEXT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, url),
		UNIQUE(run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS edges (
		vertex_id INTEGER NOT NULL REFERENCES vertices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY(vertex_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
	`

	_, err := g.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a stored crawl run.
type Run struct {
	ID         string
	Seed       string
	BasePath   string
	Workers    int
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Totals     RunTotals
}

// RunTotals are the final counts of a run.
type RunTotals struct {
	Claimed       int
	Recorded      int
	FailedFetches int
	Edges         int
	Elapsed       time.Duration
}

// BeginRun inserts a running run and returns its new ID.
func (g *GraphDB) BeginRun(ctx context.Context, seed, basePath string, workers int) (string, error) {
	id := uuid.NewString()
	if err := g.insertRun(ctx, id, seed, basePath, workers); err != nil {
		return "", err
	}
	return id, nil
}

func (g *GraphDB) insertRun(ctx context.Context, id, seed, basePath string, workers int) error {
	query := `
	INSERT INTO runs (id, seed, base_path, workers, status)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := g.db.ExecContext(ctx, query, id, seed, basePath, workers, string(RunRunning)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and totals of a run.
func (g *GraphDB) FinishRun(ctx context.Context, runID string, status RunStatus, totals RunTotals) error {
	query := `
	UPDATE runs SET
		status = ?,
		finished_at = CURRENT_TIMESTAMP,
		claimed = ?,
		recorded = ?,
		failed_fetches = ?,
		edges = ?,
		elapsed_ms = ?
	WHERE id = ?
	`
	result, err := g.db.ExecContext(ctx, query,
		string(status),
		totals.Claimed,
		totals.Recorded,
		totals.FailedFetches,
		totals.Edges,
		totals.Elapsed.Milliseconds(),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// InsertVertex stores rec and its edges in one transaction, appended to
// the run's recording order.
func (g *GraphDB) InsertVertex(ctx context.Context, runID string, rec graph.VertexRecord) (err error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // original error is more useful
		}
	}()

	query := `
	INSERT INTO vertices (run_id, seq, url, fetch_failed, digest)
	VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM vertices WHERE run_id = ?), ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, runID, runID, rec.Source, rec.FetchFailed, nullIfEmpty(rec.Digest))
	if err != nil {
		return fmt.Errorf("failed to insert vertex %s: %w", rec.Source, err)
	}
	vertexID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to insert vertex %s: %w", rec.Source, err)
	}

	if len(rec.Neighbors) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO edges (vertex_id, position, target) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare edge insert: %w", err)
		}
		defer stmt.Close()

		for i, n := range rec.Neighbors {
			if _, err := stmt.ExecContext(ctx, vertexID, i, n); err != nil {
				return fmt.Errorf("failed to insert edge %s -> %s: %w", rec.Source, n, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vertex %s: %w", rec.Source, err)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (g *GraphDB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := g.db.QueryContext(ctx, selectRun+" ORDER BY started_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose ID equals or starts with idPrefix.
func (g *GraphDB) GetRun(ctx context.Context, idPrefix string) (*Run, error) {
	if idPrefix == "" {
		return nil, ErrRunNotFound
	}

	pattern := escapeLike(idPrefix) + "%"
	rows, err := g.db.QueryContext(ctx, selectRun+` WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		idPrefix, pattern, idPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case runs[0].ID == idPrefix:
		return runs[0], nil
	case len(runs) > 1:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, idPrefix)
	default:
		return runs[0], nil
	}
}

// Vertices returns the run's records in the order they were recorded.
func (g *GraphDB) Vertices(ctx context.Context, runID string) ([]graph.VertexRecord, error) {
	query := `
	SELECT v.id, v.url, v.fetch_failed, v.digest, e.target
	FROM vertices v
	LEFT JOIN edges e ON e.vertex_id = v.id
	WHERE v.run_id = ?
	ORDER BY v.seq, e.position
	`
	rows, err := g.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vertices: %w", err)
	}
	defer rows.Close()

	var (
		records []graph.VertexRecord
		lastID  int64 = -1
	)
	for rows.Next() {
		var (
			id     int64
			url    string
			failed bool
			digest sql.NullString
			target sql.NullString
		)
		if err := rows.Scan(&id, &url, &failed, &digest, &target); err != nil {
			return nil, fmt.Errorf("failed to scan vertex: %w", err)
		}
		if id != lastID {
			records = append(records, graph.VertexRecord{
				Source:      url,
				FetchFailed: failed,
				Digest:      digest.String,
			})
			lastID = id
		}
		if target.Valid {
			last := &records[len(records)-1]
			last.Neighbors = append(last.Neighbors, target.String)
		}
	}
	return records, rows.Err()
}

// DeleteRun removes a run with its vertices and edges.
func (g *GraphDB) DeleteRun(ctx context.Context, runID string) error {
	result, err := g.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const selectRun = `
	SELECT id, seed, base_path, workers, status, started_at, finished_at,
		claimed, recorded, failed_fetches, edges, elapsed_ms
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(rows rowScanner) (*Run, error) {
	var (
		run       Run
		status    string
		startedAt string
		finished  sql.NullString
		elapsedMS int64
	)
	err := rows.Scan(
		&run.ID,
		&run.Seed,
		&run.BasePath,
		&run.Workers,
		&status,
		&startedAt,
		&finished,
		&run.Totals.Claimed,
		&run.Totals.Recorded,
		&run.Totals.FailedFetches,
		&run.Totals.Edges,
		&elapsedMS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTimestamp(startedAt)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	run.Totals.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &run, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// escapeLike escapes the LIKE wildcards in s for use with ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// timestampFormats lists the formats SQLite may return, most specific first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
