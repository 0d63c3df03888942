package metrics

var DefaultThresholds = []float64{500, 300, 100, 50, 20}

// Proximity fires once per threshold as the distance to the host shrinks.
// Thresholds already satisfied by the first known distance never fire.
type Proximity struct {
	thresholds []float64
	fired      map[float64]bool
	seeded     bool
}

func NewProximity(thresholds ...float64) *Proximity {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	return &Proximity{
		thresholds: append([]float64(nil), thresholds...),
		fired:      make(map[float64]bool),
	}
}

// Observe records a distance and returns the threshold crossed, if any. At
// most one threshold is reported per call; a zero distance means unknown and
// is ignored.
func (p *Proximity) Observe(distance float64) (float64, bool) {
	if distance <= 0 {
		return 0, false
	}
	if !p.seeded {
		p.seeded = true
		for _, th := range p.thresholds {
			if distance <= th {
				p.fired[th] = true
			}
		}
		return 0, false
	}
	for _, th := range p.thresholds {
		if distance <= th && !p.fired[th] {
			p.fired[th] = true
			return th, true
		}
	}
	return 0, false
}
