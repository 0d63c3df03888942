package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"backend-rendezvous/internal/metrics"
)

// view prints the status line when it changes, plus one alert per crossed
// proximity threshold.
type view struct {
	out       io.Writer
	proximity *metrics.Proximity
	last      string
}

func newView(out io.Writer, p *metrics.Proximity) *view {
	return &view{out: out, proximity: p}
}

// status is the device state shown next to the host metrics.
type status struct {
	heading     float64
	declination float64
	compass     bool
	oriented    bool
	sampling    bool
	err         string
}

func (v *view) render(m metrics.Metrics, st status) {
	arrow := int(math.Floor(metrics.ArrowRotation(m.Bearing, st.heading)+0.5)) % 360
	line := fmt.Sprintf("arrow=%d distance=%s altitude=%s",
		arrow,
		metrics.FormatDistance(m.Distance),
		metrics.FormatAltitude(m.AltitudeDelta),
	)
	switch {
	case st.compass && !st.oriented:
		line += " compass=off"
	case st.compass && st.declination != 0:
		line += fmt.Sprintf(" declination=%+.1f", st.declination)
	}
	if !st.sampling {
		line += " sampling=off"
	}
	if st.err != "" {
		line += " error=" + strconv.Quote(st.err)
	}
	if line == v.last {
		return
	}
	v.last = line
	fmt.Fprintln(v.out, line)
}

func (v *view) observe(distance float64) {
	if th, ok := v.proximity.Observe(distance); ok {
		fmt.Fprintf(v.out, "host within %s\n", metrics.FormatDistance(th))
	}
}
