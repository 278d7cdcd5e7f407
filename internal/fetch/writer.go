package fetch

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path via a sibling temporary file and a rename.
// The rename is the sole publication point: a reader never observes a
// partially written file under the final path. The temporary file lives in
// the target directory so the rename stays within one filesystem.
func WriteAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		// Leave no temp file behind on a failed publish.
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	return nil
}
