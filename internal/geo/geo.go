// Package geo resolves the download area from command-line input: it parses
// "lat,lon" coordinate text and turns either an explicit corner pair or a
// center point plus square size into a pair of bounding-box corners.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean Earth radius in meters used for the spherical
// meters-to-degrees approximation. Good enough at tile-rendering scales.
const EarthRadius = 6371000.0

// ErrNoBounds is returned when neither corner pair nor center+size is given.
var ErrNoBounds = errors.New("geo: must specify either sw/ne corners or center and size")

// ErrAmbiguousBounds is returned when both area modes are given at once.
var ErrAmbiguousBounds = errors.New("geo: sw/ne corners and center+size are mutually exclusive")

// ParsePoint parses coordinate text in "latitude,longitude" form.
// Exactly one comma with a numeric value on each side is required.
func ParsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("geo: coordinates must be in format 'latitude,longitude', got %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("geo: invalid latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("geo: invalid longitude %q: %w", parts[1], err)
	}

	return orb.Point{lon, lat}, nil
}

// metersToDegrees converts a distance in meters to latitude and longitude
// spans at the given latitude, using a spherical Earth.
func metersToDegrees(meters, latDeg float64) (dLat, dLon float64) {
	dLat = meters / (EarthRadius * math.Pi / 180.0)
	dLon = meters / (EarthRadius * math.Cos(latDeg*math.Pi/180.0) * math.Pi / 180.0)
	return dLat, dLon
}

// SquareBounds returns the southwest and northeast corners of a square of
// sizeMeters per side centered on center.
func SquareBounds(center orb.Point, sizeMeters float64) (sw, ne orb.Point) {
	half := sizeMeters / 2.0
	dLat, dLon := metersToDegrees(half, center.Lat())

	sw = orb.Point{center.Lon() - dLon, center.Lat() - dLat}
	ne = orb.Point{center.Lon() + dLon, center.Lat() + dLat}
	return sw, ne
}

// ResolveCorners determines the bounding-box corner pair from the two
// mutually exclusive input modes. The corners are returned in input order;
// callers rely on that order to detect antimeridian-crossing boxes.
func ResolveCorners(swText, neText, centerText string, sizeMeters float64) (corner1, corner2 orb.Point, err error) {
	haveCorners := swText != "" || neText != ""
	haveCenter := centerText != "" || sizeMeters > 0

	switch {
	case haveCorners && haveCenter:
		return orb.Point{}, orb.Point{}, ErrAmbiguousBounds
	case haveCorners:
		if swText == "" || neText == "" {
			return orb.Point{}, orb.Point{}, errors.New("geo: both sw and ne corners are required")
		}
		corner1, err = ParsePoint(swText)
		if err != nil {
			return orb.Point{}, orb.Point{}, err
		}
		corner2, err = ParsePoint(neText)
		if err != nil {
			return orb.Point{}, orb.Point{}, err
		}
		return corner1, corner2, nil
	case haveCenter:
		if centerText == "" || sizeMeters <= 0 {
			return orb.Point{}, orb.Point{}, errors.New("geo: both center and a positive size are required")
		}
		center, err := ParsePoint(centerText)
		if err != nil {
			return orb.Point{}, orb.Point{}, err
		}
		corner1, corner2 = SquareBounds(center, sizeMeters)
		return corner1, corner2, nil
	default:
		return orb.Point{}, orb.Point{}, ErrNoBounds
	}
}
