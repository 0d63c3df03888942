package metrics

import (
	"fmt"
	"math"

	"backend-rendezvous/internal/shared/geo"
)

// ArrowRotation is the on-screen angle of an arrow pointing at the host given
// the bearing to the host and the device heading.
func ArrowRotation(bearing, heading float64) float64 {
	return geo.NormalizeDegrees(bearing - heading)
}

func FormatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%d m", roundHalfUp(meters))
}

// FormatAltitude renders an altitude delta, prefixing "+ " when self is above.
func FormatAltitude(meters float64) string {
	var s string
	if meters >= 1000 {
		s = fmt.Sprintf("%.1f km", meters/1000)
	} else {
		s = fmt.Sprintf("%d m", roundHalfUp(meters))
	}
	if meters > 0 {
		return "+ " + s
	}
	return s
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
