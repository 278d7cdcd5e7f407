package manifest

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.sqlite")
	w, err := New(path, RunInfo{
		Zoom:        18,
		Concurrency: 100,
		Split:       4,
		OutDir:      "./tiles",
		StartedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w, path
}

func TestWriterRecordAndFlush(t *testing.T) {
	w, path := openTestWriter(t)

	entries := []Entry{
		{Z: 18, X: 125205, Y: 97683, QuadKey: "031313131313131313", Path: "18_125205_97683.glb", Bytes: 4096, Status: StatusOK},
		{Z: 18, X: 125206, Y: 97683, QuadKey: "031313131313131312", Path: "18_125206_97683.glb", Status: StatusFailed, Error: "unexpected status 500 Internal Server Error"},
	}
	for _, e := range entries {
		if err := w.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var total, failed int
	if err := db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&total); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM tiles WHERE status = ?", StatusFailed).Scan(&failed); err != nil {
		t.Fatal(err)
	}

	if total != 2 {
		t.Errorf("tiles rows = %d, want 2", total)
	}
	if failed != 1 {
		t.Errorf("failed rows = %d, want 1", failed)
	}

	var runs int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if runs != 1 {
		t.Errorf("runs rows = %d, want 1", runs)
	}
}

func TestWriterBatching(t *testing.T) {
	w, path := openTestWriter(t)

	// More entries than one batch to exercise the auto-flush.
	for i := 0; i < DefaultBatchSize+7; i++ {
		e := Entry{Z: 10, X: i, Y: 0, QuadKey: "000", Path: "p", Bytes: 1, Status: StatusOK}
		if err := w.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&total); err != nil {
		t.Fatal(err)
	}
	if total != DefaultBatchSize+7 {
		t.Errorf("tiles rows = %d, want %d", total, DefaultBatchSize+7)
	}
}

func TestMultipleRunsSameDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.sqlite")

	for i := 0; i < 2; i++ {
		w, err := New(path, RunInfo{Zoom: 18, Concurrency: 10, Split: 1, OutDir: "./tiles"})
		if err != nil {
			t.Fatalf("New (run %d): %v", i, err)
		}
		if err := w.Record(Entry{Z: 18, X: i, Y: 0, QuadKey: "0", Path: "p", Status: StatusOK}); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var runs int
	if err := db.QueryRow("SELECT COUNT(DISTINCT run_id) FROM tiles").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Errorf("distinct runs in tiles = %d, want 2", runs)
	}
}
