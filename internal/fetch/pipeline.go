package fetch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/s1dny/bing-maps-tile-downloader/internal/tile"
)

// Task is the unit of work for one tile: the coordinate, its request URL and
// its final output path. Tasks are created per tile, consumed by exactly one
// worker and discarded after completion.
type Task struct {
	Coords     tile.Coords
	URL        string
	OutputPath string
}

// Result is the outcome of one task.
type Result struct {
	Task    Task
	Bytes   int64
	Err     error
	Elapsed time.Duration
}

// Report aggregates a run. Failures appear in completion order.
type Report struct {
	Attempted  int
	Succeeded  int
	TotalBytes int64
	Failures   []Result
	Results    []Result
}

// ProgressFunc is called exactly once per task completion. bytes is the
// cumulative payload size fetched so far.
type ProgressFunc func(completed, total, failed int, bytes int64)

// Fetcher fetches one URL. Satisfied by *Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config configures the fetch pipeline.
type Config struct {
	// Workers caps the number of in-flight fetches.
	Workers int

	// Fetcher performs the HTTP requests.
	Fetcher Fetcher

	// Source provides the request URL per quadkey.
	Source Source

	// OutDir is the output root. It must exist before Run.
	OutDir string

	// GridSize shards output into GridSize x GridSize subdirectories
	// when greater than 1.
	GridSize int

	// Extension is the output file extension without the dot.
	Extension string

	OnProgress ProgressFunc
	Logger     *slog.Logger
}

// Pipeline downloads a tile list with bounded concurrency. Failures are
// recorded and never interrupt sibling tasks; the run always attempts the
// full list.
type Pipeline struct {
	cfg Config
}

// New creates a pipeline. Concurrency is fixed at construction.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = 1
	}
	if cfg.Extension == "" {
		cfg.Extension = "glb"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{cfg: cfg}
}

// task builds the ephemeral work unit for one tile: request URL from the
// quadkey, output path from the grid shard.
func (p *Pipeline) task(c tile.Coords) Task {
	dir := p.cfg.OutDir
	if sub := tile.Subfolder(c.X, c.Y, p.cfg.GridSize); sub != "" {
		dir = filepath.Join(dir, sub)
	}

	return Task{
		Coords:     c,
		URL:        p.cfg.Source.TileURL(c.QuadKey()),
		OutputPath: filepath.Join(dir, c.Path(p.cfg.Extension)),
	}
}

// Run fetches every tile in the list and returns the aggregate report.
// At most Workers fetches are in flight at any instant; the next task starts
// only once a running one has fully completed.
func (p *Pipeline) Run(ctx context.Context, tiles []tile.Coords) Report {
	if len(tiles) == 0 {
		return Report{}
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, p.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		for _, c := range tiles {
			taskCh <- p.task(c)
		}
		close(taskCh)
	}()

	// Collect results; the shared mutable state is this loop's counters
	// plus the progress sink, each touched once per completion.
	report := Report{
		Attempted: len(tiles),
		Results:   make([]Result, 0, len(tiles)),
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		completed := 0
		for res := range resultCh {
			completed++
			if res.Err != nil {
				report.Failures = append(report.Failures, res)
			} else {
				report.Succeeded++
				report.TotalBytes += res.Bytes
			}
			report.Results = append(report.Results, res)

			if p.cfg.OnProgress != nil {
				p.cfg.OnProgress(completed, len(tiles), len(report.Failures), report.TotalBytes)
			}
		}
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return report
}

func (p *Pipeline) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		start := time.Now()
		n, err := p.fetchOne(ctx, task)
		if err != nil {
			p.cfg.Logger.Error("tile fetch failed",
				"tile", task.Coords.String(), "url", task.URL, "error", err)
		}
		results <- Result{
			Task:    task,
			Bytes:   n,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}

// fetchOne performs the single attempt for a tile: GET, then atomic publish.
func (p *Pipeline) fetchOne(ctx context.Context, task Task) (int64, error) {
	body, err := p.cfg.Fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return 0, err
	}

	if err := WriteAtomic(task.OutputPath, body); err != nil {
		return 0, err
	}

	return int64(len(body)), nil
}
