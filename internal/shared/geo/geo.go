// Package geo holds the geodesy used to relate two participants: ellipsoidal
// distance, initial bearing and altitude difference.
package geo

import (
	"math"

	golanggeo "github.com/kellydunn/golang-geo"
	"github.com/tidwall/geodesic"
)

// Distance returns the WGS84 geodesic distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &s12, nil, nil)
	return s12
}

// Bearing returns the initial great-circle bearing from the first point to
// the second, in degrees clockwise from true north, within [0, 360).
// Identical points yield 0.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	from := golanggeo.NewPoint(lat1, lon1)
	to := golanggeo.NewPoint(lat2, lon2)
	return NormalizeDegrees(from.BearingTo(to))
}

// AltitudeDelta is self minus other, positive when self is higher.
func AltitudeDelta(self, other float64) float64 {
	return self - other
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// ShortestTurn returns the signed angle in (-180, 180] that rotates from
// onto to.
func ShortestTurn(from, to float64) float64 {
	diff := NormalizeDegrees(to - from)
	if diff > 180 {
		diff -= 360
	}
	return diff
}
