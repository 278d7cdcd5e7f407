// Package tile implements Web-Mercator tile addressing: point-to-tile math,
// quadkey encoding, bounding-box tile ranges with antimeridian handling, and
// the grid sharding of output subdirectories.
package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// MaxLat is the Mercator projection latitude limit. Latitudes beyond it are
// clamped before any tile computation.
const MaxLat = 85.05112878

// Coords is a tile coordinate in the Web Mercator tile system.
// Valid indices are [0, 2^z-1] per axis after wrapping and clamping.
type Coords struct {
	X int
	Y int
	Z int
}

// NewCoords creates a new Coords from zoom, x, y values.
func NewCoords(z, x, y int) Coords {
	return Coords{X: x, Y: y, Z: z}
}

// String returns the tile coordinate as "{z}_{x}_{y}", the form used for
// output file names.
func (c Coords) String() string {
	return fmt.Sprintf("%d_%d_%d", c.Z, c.X, c.Y)
}

// Path returns the output file name for this tile.
func (c Coords) Path(extension string) string {
	return fmt.Sprintf("%s.%s", c.String(), extension)
}

// QuadKey returns the base-4 quadkey address of the tile: one digit per zoom
// level, most significant first, digit = bit(x) + 2*bit(y).
func (c Coords) QuadKey() string {
	buf := make([]byte, 0, c.Z)
	for i := c.Z; i > 0; i-- {
		mask := 1 << (i - 1)
		digit := byte('0')
		if c.X&mask != 0 {
			digit++
		}
		if c.Y&mask != 0 {
			digit += 2
		}
		buf = append(buf, digit)
	}
	return string(buf)
}

// ClampLat clamps a latitude to the Mercator projection limit.
func ClampLat(lat float64) float64 {
	return math.Max(-MaxLat, math.Min(MaxLat, lat))
}

// WrapLon wraps a longitude into [-180, 180).
func WrapLon(lon float64) float64 {
	l := math.Mod(lon, 360.0)
	if l >= 180.0 {
		l -= 360.0
	}
	if l < -180.0 {
		l += 360.0
	}
	return l
}

// AtPoint returns the tile containing the given WGS84 point at zoom z.
// Flooring rounds toward negative infinity so boundary inputs map correctly.
// Indices are clamped into [0, 2^z-1]: at the latitude limits the Mercator y
// lands a few ulps outside the unit range and would otherwise floor to -1 or
// 2^z.
func AtPoint(p orb.Point, z int) Coords {
	lat := ClampLat(p.Lat())
	lon := WrapLon(p.Lon())
	n := float64(int(1) << uint(z))
	latRad := lat * math.Pi / 180.0

	xf := ((lon + 180.0) / 360.0) * n
	yf := (0.5 - math.Log(math.Tan(math.Pi/4.0+latRad/2.0))/(2.0*math.Pi)) * n

	edge := (1 << uint(z)) - 1
	return Coords{
		X: clampIndex(int(math.Floor(xf)), edge),
		Y: clampIndex(int(math.Floor(yf)), edge),
		Z: z,
	}
}

func clampIndex(i, edge int) int {
	if i < 0 {
		return 0
	}
	if i > edge {
		return edge
	}
	return i
}
