package tile

import "fmt"

// ParseSplit validates a grid split factor and returns the grid size.
// The split must be a perfect square >= 1 (1, 4, 9, 16, 25, ...).
func ParseSplit(split int) (int, error) {
	if split < 1 {
		return 0, fmt.Errorf("tile: split must be greater than 0, got %d", split)
	}

	gridSize := 0
	for gridSize*gridSize < split {
		gridSize++
	}
	if gridSize*gridSize != split {
		return 0, fmt.Errorf("tile: split must be a perfect square (1, 4, 9, 16, 25, ...), got %d", split)
	}

	return gridSize, nil
}

// Subfolder returns the output subdirectory for a tile under a gridSize x
// gridSize split, or "" when the grid is 1x1. Indices are taken absolute
// before the modulo; negative indices should not survive wrapping but must
// not produce a malformed path if they do.
func Subfolder(x, y, gridSize int) string {
	if gridSize == 1 {
		return ""
	}

	gridX := abs(x) % gridSize
	gridY := abs(y) % gridSize

	return fmt.Sprintf("%02d_%02d", gridX, gridY)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
