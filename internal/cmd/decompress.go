package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/s1dny/bing-maps-tile-downloader/internal/decompress"
)

var decompressCmd = &cobra.Command{
	Use:   "decompress [input-dir]",
	Short: "Parallel KTX2 texture decompression for .glb files",
	Long: `Run gltf-transform ktxdecompress over every .glb file in a directory.

Files are processed by a worker pool; outputs that already exist are skipped
unless --force is given. Uses a globally installed gltf-transform when
available and falls back to npx.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecompress,
}

func init() {
	rootCmd.AddCommand(decompressCmd)

	decompressCmd.Flags().StringP("out", "o", "", "Output directory (defaults to <input-dir>/processed)")
	decompressCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	decompressCmd.Flags().BoolP("force", "f", false, "Overwrite outputs if they already exist")
	decompressCmd.Flags().IntP("jobs", "j", 0, "Limit worker count (default: number of logical CPUs)")
	decompressCmd.Flags().Bool("use-npx", false, "Force using npx instead of a globally installed gltf-transform")
	decompressCmd.Flags().Bool("dry-run", false, "List what would be processed without executing")
	decompressCmd.Flags().Bool("progress", true, "Show progress updates")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"decompress.out", "out"},
		{"decompress.recursive", "recursive"},
		{"decompress.force", "force"},
		{"decompress.jobs", "jobs"},
		{"decompress.use_npx", "use-npx"},
		{"decompress.dry_run", "dry-run"},
		{"decompress.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, decompressCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runDecompress(cmd *cobra.Command, args []string) error {
	inputDir := "."
	if len(args) == 1 {
		inputDir = args[0]
	}

	outDir := viper.GetString("decompress.out")
	recursive := viper.GetBool("decompress.recursive")
	force := viper.GetBool("decompress.force")
	jobs := viper.GetInt("decompress.jobs")
	useNpx := viper.GetBool("decompress.use_npx")
	dryRun := viper.GetBool("decompress.dry_run")
	showProgress := viper.GetBool("decompress.progress")

	if outDir == "" {
		outDir = filepath.Join(inputDir, "processed")
	}

	files, err := decompress.CollectFiles(inputDir, recursive)
	if err != nil {
		return err
	}

	logger.Info("Starting decompression",
		"input", inputDir,
		"files", len(files),
		"out", outDir,
		"recursive", recursive,
		"dry_run", dryRun,
	)
	if len(files) == 0 {
		return nil
	}

	var onProgress decompress.ProgressFunc
	if showProgress {
		onProgress = func(completed, total, failed int) {
			line := fmt.Sprintf("\r%d/%d files", completed, total)
			if failed > 0 {
				line += fmt.Sprintf(" (%d failed)", failed)
			}
			fmt.Fprint(os.Stderr, line+"          ")
		}
	}

	report, err := decompress.Run(context.Background(), files, decompress.Options{
		OutDir:     outDir,
		Jobs:       jobs,
		Force:      force,
		DryRun:     dryRun,
		Runner:     decompress.DetectCLI(useNpx),
		OnProgress: onProgress,
		Logger:     logger,
	})
	if showProgress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	logger.Info("Decompression complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)

	if len(report.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "Completed with %d error(s):\n", len(report.Failures))
		for i, res := range report.Failures {
			fmt.Fprintf(os.Stderr, "  %d. %s: %v\n", i+1, res.Path, res.Err)
		}
		return fmt.Errorf("%d of %d files failed", len(report.Failures), report.Attempted)
	}

	fmt.Printf("All done. Decompressed files are in: %s\n", outDir)
	return nil
}
