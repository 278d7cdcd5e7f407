package tile

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestCoordsString(t *testing.T) {
	tests := []struct {
		coords   Coords
		expected string
	}{
		{NewCoords(18, 125205, 97683), "18_125205_97683"},
		{NewCoords(0, 0, 0), "0_0_0"},
		{NewCoords(3, 7, 7), "3_7_7"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.coords.String(); got != tt.expected {
				t.Errorf("String() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestCoordsPath(t *testing.T) {
	c := NewCoords(18, 125205, 97683)
	if got := c.Path("glb"); got != "18_125205_97683.glb" {
		t.Errorf("Path(glb) = %s, want 18_125205_97683.glb", got)
	}
}

func TestAtPointGridCorners(t *testing.T) {
	// The extreme corners of the projection map to the first and last tile.
	// 0.001 degrees of longitude is wider than a tile only through zoom 18;
	// beyond that the south-east probe moves to the last column's midpoint.
	for z := 0; z <= 20; z++ {
		edge := (1 << uint(z)) - 1

		nw := AtPoint(orb.Point{-180, 85.0511}, z)
		if nw.X != 0 || nw.Y != 0 {
			t.Errorf("z=%d: AtPoint(-180, 85.0511) = (%d, %d), want (0, 0)", z, nw.X, nw.Y)
		}

		seLon := 179.999
		if z > 18 {
			seLon = 180.0 - 180.0/float64(int(1)<<uint(z))
		}
		se := AtPoint(orb.Point{seLon, -85.0511}, z)
		if se.X != edge || se.Y != edge {
			t.Errorf("z=%d: AtPoint(%v, -85.0511) = (%d, %d), want (%d, %d)", z, seLon, se.X, se.Y, edge, edge)
		}
	}
}

func TestAtPointIndicesInRange(t *testing.T) {
	// At the projection's latitude limits the Mercator y lands a few ulps
	// outside [0, 1); the returned indices must still stay on the grid.
	for z := 0; z <= 20; z++ {
		edge := (1 << uint(z)) - 1

		if c := AtPoint(orb.Point{0, 90}, z); c.Y != 0 {
			t.Errorf("z=%d: lat 90: y = %d, want 0", z, c.Y)
		}
		if c := AtPoint(orb.Point{0, -90}, z); c.Y != edge {
			t.Errorf("z=%d: lat -90: y = %d, want %d", z, c.Y, edge)
		}
		if c := AtPoint(orb.Point{0, MaxLat}, z); c.Y != 0 {
			t.Errorf("z=%d: lat %v: y = %d, want 0", z, MaxLat, c.Y)
		}
		if c := AtPoint(orb.Point{0, -MaxLat}, z); c.Y != edge {
			t.Errorf("z=%d: lat %v: y = %d, want %d", z, -MaxLat, c.Y, edge)
		}
	}
}

func TestAtPointKnownTile(t *testing.T) {
	// Madrid at zoom 18.
	c := AtPoint(orb.Point{-3.0, 40.0}, 18)
	if c.X != 128887 {
		t.Errorf("x = %d, want 128887", c.X)
	}
	if c.Y != 99242 {
		t.Errorf("y = %d, want 99242", c.Y)
	}
}

func TestAtPointClampsAndWraps(t *testing.T) {
	z := 10
	edge := (1 << uint(z)) - 1

	// Latitude beyond the projection limit clamps to the grid edge.
	if c := AtPoint(orb.Point{0, 90}, z); c.Y != 0 {
		t.Errorf("lat 90: y = %d, want 0", c.Y)
	}
	if c := AtPoint(orb.Point{0, -90}, z); c.Y != edge {
		t.Errorf("lat -90: y = %d, want %d", c.Y, edge)
	}

	// Longitudes wrap into [-180, 180) before tiling.
	a := AtPoint(orb.Point{190, 0}, z)
	b := AtPoint(orb.Point{-170, 0}, z)
	if a.X != b.X {
		t.Errorf("lon 190 and -170 should map to the same column: %d != %d", a.X, b.X)
	}
	if c := AtPoint(orb.Point{180, 0}, z); c.X != 0 {
		t.Errorf("lon 180 wraps to -180: x = %d, want 0", c.X)
	}
}

func TestWrapLon(t *testing.T) {
	tests := []struct {
		in, out float64
	}{
		{0, 0},
		{-180, -180},
		{180, -180},
		{190, -170},
		{-190, 170},
		{540, -180},
		{360, 0},
		{179.999, 179.999},
	}

	for _, tt := range tests {
		if got := WrapLon(tt.in); math.Abs(got-tt.out) > 1e-12 {
			t.Errorf("WrapLon(%v) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestClampLat(t *testing.T) {
	if got := ClampLat(90); got != MaxLat {
		t.Errorf("ClampLat(90) = %v, want %v", got, MaxLat)
	}
	if got := ClampLat(-90); got != -MaxLat {
		t.Errorf("ClampLat(-90) = %v, want %v", got, -MaxLat)
	}
	if got := ClampLat(40); got != 40 {
		t.Errorf("ClampLat(40) = %v, want 40", got)
	}
}

func TestQuadKeyKnownValues(t *testing.T) {
	tests := []struct {
		coords   Coords
		expected string
	}{
		{NewCoords(1, 0, 0), "0"},
		{NewCoords(1, 1, 0), "1"},
		{NewCoords(1, 0, 1), "2"},
		{NewCoords(1, 1, 1), "3"},
		{NewCoords(3, 3, 5), "213"},
		{NewCoords(0, 0, 0), ""},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.coords.QuadKey(); got != tt.expected {
				t.Errorf("QuadKey(%v) = %q, want %q", tt.coords, got, tt.expected)
			}
		})
	}
}

func TestQuadKeyShape(t *testing.T) {
	// Length z, digits in '0'..'3', injective over the tile grid.
	for z := 1; z <= 6; z++ {
		n := 1 << uint(z)
		seen := make(map[string]Coords, n*n)

		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				qk := NewCoords(z, x, y).QuadKey()
				if len(qk) != z {
					t.Fatalf("z=%d: QuadKey(%d,%d) has length %d", z, x, y, len(qk))
				}
				for _, r := range qk {
					if r < '0' || r > '3' {
						t.Fatalf("z=%d: QuadKey(%d,%d) contains %q", z, x, y, r)
					}
				}
				if prev, dup := seen[qk]; dup {
					t.Fatalf("z=%d: quadkey %q produced by both %v and (%d,%d)", z, qk, prev, x, y)
				}
				seen[qk] = NewCoords(z, x, y)
			}
		}
	}
}
