package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/s1dny/bing-maps-tile-downloader/internal/fetch"
	"github.com/s1dny/bing-maps-tile-downloader/internal/geo"
	"github.com/s1dny/bing-maps-tile-downloader/internal/manifest"
	"github.com/s1dny/bing-maps-tile-downloader/internal/tile"
)

// defaultAPIKey is the publicly known key baked into the Bing Maps 3D client.
const defaultAPIKey = "Ar9wCt_eD79MwUsC3wup-erRDfnN0VKqPSZQ4yiCNDucBOJBeflFCNZQUgocler6"

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download Bing 3D 'mtx' GLB tiles for a lat/lon rectangle",
	Long: `Download Bing Maps 3D tiles covering a bounding box.

The area is given either as explicit southwest/northeast corners or as a
center point with a square size in meters. Tiles are fetched concurrently
and written as {zoom}_{x}_{y}.glb, optionally sharded across a grid of
subdirectories.`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("sw-coord", "", "Southwest corner as \"lat,lon\"")
	downloadCmd.Flags().String("ne-coord", "", "Northeast corner as \"lat,lon\"")
	downloadCmd.Flags().String("center-coord", "", "Center point as \"lat,lon\"")
	downloadCmd.Flags().Float64("size", 0, "Square size in meters (with --center-coord)")
	downloadCmd.Flags().String("out", "./tiles", "Output directory")
	downloadCmd.Flags().String("api-key", defaultAPIKey, "Bing API key")
	downloadCmd.Flags().IntP("zoom", "z", 18, "Zoom level (max ~20)")
	downloadCmd.Flags().IntP("concurrency", "c", 100, "Maximum concurrent requests")
	downloadCmd.Flags().Int("split", 1, "Split tiles into a grid of subdirectories (must be a perfect square: 1, 4, 9, 16, 25, etc.)")
	downloadCmd.Flags().String("host", fetch.DefaultHost, "Tile host")
	downloadCmd.Flags().String("manifest", "", "Record the run in a SQLite manifest at this path")
	downloadCmd.Flags().Bool("progress", true, "Show progress bar")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"download.sw_coord", "sw-coord"},
		{"download.ne_coord", "ne-coord"},
		{"download.center_coord", "center-coord"},
		{"download.size", "size"},
		{"download.out", "out"},
		{"download.api_key", "api-key"},
		{"download.zoom", "zoom"},
		{"download.concurrency", "concurrency"},
		{"download.split", "split"},
		{"download.host", "host"},
		{"download.manifest", "manifest"},
		{"download.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, downloadCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	swCoord := viper.GetString("download.sw_coord")
	neCoord := viper.GetString("download.ne_coord")
	centerCoord := viper.GetString("download.center_coord")
	size := viper.GetFloat64("download.size")
	outDir := viper.GetString("download.out")
	apiKey := viper.GetString("download.api_key")
	zoom := viper.GetInt("download.zoom")
	concurrency := viper.GetInt("download.concurrency")
	split := viper.GetInt("download.split")
	host := viper.GetString("download.host")
	manifestPath := viper.GetString("download.manifest")
	showProgress := viper.GetBool("download.progress")

	if zoom < 0 || zoom > 22 {
		return fmt.Errorf("zoom must be within [0, 22], got %d", zoom)
	}
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}

	gridSize, err := tile.ParseSplit(split)
	if err != nil {
		return err
	}

	corner1, corner2, err := geo.ResolveCorners(swCoord, neCoord, centerCoord, size)
	if err != nil {
		return err
	}

	ranges := tile.RangesFromCorners(corner1, corner2, zoom)
	tiles := tile.Enumerate(ranges)
	if len(tiles) == 0 {
		logger.Info("No tiles in the specified range")
		return nil
	}

	logger.Info("Starting tile download",
		"bbox", fmt.Sprintf("(%.6f, %.6f) to (%.6f, %.6f)", corner1.Lat(), corner1.Lon(), corner2.Lat(), corner2.Lon()),
		"zoom", zoom,
		"ranges", len(ranges),
		"tiles", len(tiles),
		"concurrency", concurrency,
		"out", outDir,
	)
	if split > 1 {
		logger.Info("Grid split enabled", "split", split, "grid", fmt.Sprintf("%dx%d", gridSize, gridSize))
	}

	// The output root must exist before any fetch; failing here is fatal
	// for the whole run.
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", outDir, err)
	}

	var mw *manifest.Writer
	if manifestPath != "" {
		mw, err = manifest.New(manifestPath, manifest.RunInfo{
			Zoom:        zoom,
			Concurrency: concurrency,
			Split:       split,
			OutDir:      outDir,
			StartedAt:   time.Now(),
		})
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		defer mw.Close()
	}

	progress := fetch.NewProgress(len(tiles), showProgress)

	pipeline := fetch.New(fetch.Config{
		Workers: concurrency,
		Fetcher: fetch.NewClient(fetch.DefaultClientOptions()),
		Source: fetch.Source{
			Host:      host,
			BuildID:   fetch.DefaultBuildID,
			FormatTag: fetch.DefaultFormatTag,
			APIKey:    apiKey,
		},
		OutDir:     outDir,
		GridSize:   gridSize,
		OnProgress: progress.Callback(),
		Logger:     logger,
	})

	report := pipeline.Run(context.Background(), tiles)
	progress.Done()

	if mw != nil {
		for _, res := range report.Results {
			entry := manifest.Entry{
				Z:       res.Task.Coords.Z,
				X:       res.Task.Coords.X,
				Y:       res.Task.Coords.Y,
				QuadKey: res.Task.Coords.QuadKey(),
				Path:    relToOut(outDir, res.Task.OutputPath),
				Bytes:   res.Bytes,
				Status:  manifest.StatusOK,
			}
			if res.Err != nil {
				entry.Status = manifest.StatusFailed
				entry.Error = res.Err.Error()
			}
			if err := mw.Record(entry); err != nil {
				logger.Error("manifest write failed", "error", err)
				break
			}
		}
		if err := mw.Flush(); err != nil {
			logger.Error("manifest flush failed", "error", err)
		}
	}

	logger.Info(progress.Summary())

	if len(report.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "Completed with %d failed tile(s):\n", len(report.Failures))
		for i, res := range report.Failures {
			fmt.Fprintf(os.Stderr, "  %d. %s: %v\n", i+1, res.Task.Coords, res.Err)
		}
		return fmt.Errorf("%d of %d tiles failed to download", len(report.Failures), report.Attempted)
	}

	fmt.Printf("Done: Saved %d/%d tiles\n", report.Succeeded, report.Attempted)
	return nil
}

func relToOut(outDir, path string) string {
	if rel, err := filepath.Rel(outDir, path); err == nil {
		return rel
	}
	return path
}
