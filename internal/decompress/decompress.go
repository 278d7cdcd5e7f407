// Package decompress runs KTX2 texture decompression over a directory of
// .glb files by invoking the gltf-transform CLI once per file with a fixed
// worker pool. Per-file failures are collected, never aborting the sweep.
package decompress

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// npxPackage is the fallback when gltf-transform is not installed globally.
const npxPackage = "@gltf-transform/cli"

// Runner executes the external decompression command for one file.
type Runner interface {
	Run(ctx context.Context, inPath, outPath string) error
}

// CLI locates the gltf-transform executable, either a global install or the
// npx fallback.
type CLI struct {
	Path string // path to gltf-transform; ignored when Npx is set
	Npx  bool
}

// DetectCLI finds gltf-transform on PATH, falling back to npx.
func DetectCLI(forceNpx bool) CLI {
	if !forceNpx {
		if p, err := exec.LookPath("gltf-transform"); err == nil {
			return CLI{Path: p}
		}
	}
	return CLI{Npx: true}
}

// Run invokes `<cli> ktxdecompress <in> <out>`. A non-zero exit is an error.
func (c CLI) Run(ctx context.Context, inPath, outPath string) error {
	var cmd *exec.Cmd
	if c.Npx {
		cmd = exec.CommandContext(ctx, "npx", "-y", npxPackage, "ktxdecompress", inPath, outPath)
	} else {
		cmd = exec.CommandContext(ctx, c.Path, "ktxdecompress", inPath, outPath)
	}

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ktxdecompress %s: %w: %s", filepath.Base(inPath), err, msg)
		}
		return fmt.Errorf("ktxdecompress %s: %w", filepath.Base(inPath), err)
	}

	return nil
}

// CollectFiles returns the sorted .glb files under root. Only the top level
// is scanned unless recursive is set.
func CollectFiles(root string, recursive bool) ([]string, error) {
	var files []string

	if recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isGLB(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() && isGLB(e.Name()) {
				files = append(files, filepath.Join(root, e.Name()))
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func isGLB(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".glb")
}

// ProgressFunc is called once per processed file.
type ProgressFunc func(completed, total, failed int)

// Options configures a decompression sweep.
type Options struct {
	// OutDir receives the decompressed files, named as their inputs.
	OutDir string

	// Jobs is the worker count. Defaults to the number of CPUs.
	Jobs int

	// Force overwrites outputs that already exist.
	Force bool

	// DryRun lists what would be processed without executing anything.
	DryRun bool

	// Runner executes the external command. Defaults to DetectCLI(false).
	Runner Runner

	OnProgress ProgressFunc
	Logger     *slog.Logger
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path    string
	Skipped bool
	Err     error
}

// Report aggregates a sweep. Failures appear in completion order.
type Report struct {
	Attempted int
	Processed int
	Skipped   int
	Failures  []FileResult
}

// Run sweeps the file list with a fixed worker pool. Files are independent:
// skip-if-exists and dry-run are checked per file, and a failed file never
// aborts the remaining ones.
func Run(ctx context.Context, files []string, opts Options) (Report, error) {
	if opts.OutDir == "" {
		return Report{}, fmt.Errorf("decompress: output directory is required")
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	if opts.Runner == nil {
		opts.Runner = DetectCLI(false)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("create output directory %s: %w", opts.OutDir, err)
	}

	report := Report{Attempted: len(files)}
	if len(files) == 0 {
		return report, nil
	}

	fileCh := make(chan string)
	resultCh := make(chan FileResult, opts.Jobs)

	var wg sync.WaitGroup
	for i := 0; i < opts.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileCh {
				resultCh <- processOne(ctx, path, opts)
			}
		}()
	}

	go func() {
		for _, f := range files {
			fileCh <- f
		}
		close(fileCh)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		completed := 0
		for res := range resultCh {
			completed++
			switch {
			case res.Err != nil:
				report.Failures = append(report.Failures, res)
			case res.Skipped:
				report.Skipped++
			default:
				report.Processed++
			}
			if opts.OnProgress != nil {
				opts.OnProgress(completed, len(files), len(report.Failures))
			}
		}
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return report, nil
}

func processOne(ctx context.Context, inPath string, opts Options) FileResult {
	outPath := filepath.Join(opts.OutDir, filepath.Base(inPath))

	if !opts.Force {
		if _, err := os.Stat(outPath); err == nil {
			opts.Logger.Debug("skipping existing output", "file", filepath.Base(inPath))
			return FileResult{Path: inPath, Skipped: true}
		}
	}

	if opts.DryRun {
		opts.Logger.Info("dry run", "file", filepath.Base(inPath), "out", outPath)
		return FileResult{Path: inPath, Skipped: true}
	}

	if err := opts.Runner.Run(ctx, inPath, outPath); err != nil {
		return FileResult{Path: inPath, Err: err}
	}

	return FileResult{Path: inPath}
}
