package tile

import (
	"math"

	"github.com/paulmach/orb"
)

// Range is an inclusive rectangular tile-index range at a single zoom level.
type Range struct {
	MinX, MaxX int
	MinY, MaxY int
	Z          int
}

// Count returns the number of tiles in the range.
func (r Range) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// ForEach calls fn for each tile in the range, row-major: y in the outer
// loop, x in the inner loop.
func (r Range) ForEach(fn func(Coords)) {
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			fn(NewCoords(r.Z, x, y))
		}
	}
}

// RangesFromCorners computes the tile-index ranges covering the bounding box
// given by two corners at zoom z. The corners may be in arbitrary order.
//
// A box is treated as crossing the antimeridian when the first corner's
// wrapped longitude exceeds the second's. This is a heuristic on input
// order, not a shortest-arc test; degenerate near-antipodal boxes can be
// misclassified. A crossing box yields two disjoint ranges, one reaching
// the eastern grid edge and one starting at the western edge.
func RangesFromCorners(c1, c2 orb.Point, z int) []Range {
	aLon := WrapLon(c1.Lon())
	bLon := WrapLon(c2.Lon())
	aLat := ClampLat(c1.Lat())
	bLat := ClampLat(c2.Lat())

	lonMin, lonMax := math.Min(aLon, bLon), math.Max(aLon, bLon)
	latMin, latMax := math.Min(aLat, bLat), math.Max(aLat, bLat)

	// Conservative y bounds across all four corner combinations.
	yMin, yMax := math.MaxInt, math.MinInt
	for _, lon := range [2]float64{lonMin, lonMax} {
		for _, lat := range [2]float64{latMin, latMax} {
			y := AtPoint(orb.Point{lon, lat}, z).Y
			yMin = min(yMin, y)
			yMax = max(yMax, y)
		}
	}

	if aLon <= bLon {
		return []Range{{
			MinX: AtPoint(orb.Point{lonMin, latMin}, z).X,
			MaxX: AtPoint(orb.Point{lonMax, latMin}, z).X,
			MinY: yMin,
			MaxY: yMax,
			Z:    z,
		}}
	}

	// Crossing: west of the seam up to the last column, then the first
	// column up to east of the seam.
	edge := (1 << uint(z)) - 1
	return []Range{
		{
			MinX: AtPoint(orb.Point{aLon, latMin}, z).X,
			MaxX: edge,
			MinY: yMin,
			MaxY: yMax,
			Z:    z,
		},
		{
			MinX: 0,
			MaxX: AtPoint(orb.Point{bLon, latMin}, z).X,
			MinY: yMin,
			MaxY: yMax,
			Z:    z,
		},
	}
}

// Enumerate expands the ranges into the concrete tile list, concatenating in
// range order. Iteration order only affects progress-reporting determinism.
func Enumerate(ranges []Range) []Coords {
	total := 0
	for _, r := range ranges {
		total += r.Count()
	}

	tiles := make([]Coords, 0, total)
	for _, r := range ranges {
		r.ForEach(func(c Coords) {
			tiles = append(tiles, c)
		})
	}
	return tiles
}
