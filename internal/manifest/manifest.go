// Package manifest records download runs in a SQLite database: one row per
// attempted tile with its outcome, plus per-run metadata. The manifest is an
// audit artifact; nothing on the fetch path reads from it.
package manifest

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of entries buffered before flushing.
	DefaultBatchSize = 100

	// Tile outcome states.
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one attempted tile.
type Entry struct {
	Z       int
	X       int
	Y       int
	QuadKey string
	Path    string // output path relative to the output root
	Bytes   int64
	Status  string
	Error   string // error text for failed tiles, "" otherwise
}

// RunInfo describes the run the entries belong to.
type RunInfo struct {
	Zoom        int
	Concurrency int
	Split       int
	OutDir      string
	StartedAt   time.Time
}

// Writer appends tile entries to a manifest database.
type Writer struct {
	db        *sql.DB
	runID     int64
	batch     []Entry
	batchSize int
	mu        sync.Mutex
}

// New opens (creating if needed) a manifest database at path and starts a
// new run with the given info.
func New(path string, info RunInfo) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	runID, err := insertRun(db, info)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	return &Writer{
		db:        db,
		runID:     runID,
		batch:     make([]Entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			zoom INTEGER NOT NULL,
			concurrency INTEGER NOT NULL,
			split INTEGER NOT NULL,
			out_dir TEXT NOT NULL,
			started_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tiles (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			quadkey TEXT NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS tile_run_index ON tiles (run_id, zoom_level, tile_column, tile_row);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertRun(db *sql.DB, info RunInfo) (int64, error) {
	startedAt := info.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	res, err := db.Exec(
		"INSERT INTO runs (zoom, concurrency, split, out_dir, started_at) VALUES (?, ?, ?, ?, ?)",
		info.Zoom, info.Concurrency, info.Split, info.OutDir, startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// Record adds an entry to the batch. When the batch is full it is flushed.
func (w *Writer) Record(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, e)
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// Flush writes any buffered entries to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(
		"INSERT INTO tiles (run_id, zoom_level, tile_column, tile_row, quadkey, path, bytes, status, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		if _, err := stmt.Exec(w.runID, e.Z, e.X, e.Y, e.QuadKey, e.Path, e.Bytes, e.Status, e.Error); err != nil {
			return fmt.Errorf("failed to insert tile %d/%d/%d: %w", e.Z, e.X, e.Y, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining entries and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
