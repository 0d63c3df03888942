// Package metrics derives distance, bearing and altitude difference between
// the local participant and the room host.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"backend-rendezvous/internal/aggregator"
	"backend-rendezvous/internal/shared/geo"
)

const writeTimeout = 10 * time.Second

type Metrics struct {
	Distance      float64
	Bearing       float64
	AltitudeDelta float64
}

// Compute relates self to host. Distance and bearing stay 0 unless all four
// coordinates are known; the altitude delta stays 0 unless both altitudes are.
func Compute(s aggregator.Snapshot) Metrics {
	var self, host aggregator.Position
	if s.Self != nil {
		self = *s.Self
	}
	if s.Host != nil {
		host = *s.Host
	}

	var m Metrics
	if self.Latitude != nil && self.Longitude != nil && host.Latitude != nil && host.Longitude != nil {
		m.Distance = geo.Distance(*self.Latitude, *self.Longitude, *host.Latitude, *host.Longitude)
		m.Bearing = geo.Bearing(*self.Latitude, *self.Longitude, *host.Latitude, *host.Longitude)
	}
	if self.Altitude != nil && host.Altitude != nil {
		m.AltitudeDelta = geo.AltitudeDelta(*self.Altitude, *host.Altitude)
	}
	return m
}

// DistanceWriter persists the computed distance on the local participant's
// record. seq increases with every write issued by one Tracker.
type DistanceWriter interface {
	UpdateDistance(ctx context.Context, distance float64, seq int64) error
}

type inputs struct {
	selfLat, selfLon, selfAlt, hostLat, hostLon, hostAlt *float64
}

// Tracker recomputes metrics when the aggregated coordinates change and
// writes every non-zero distance back to the store.
type Tracker struct {
	writer DistanceWriter
	logger *zap.SugaredLogger

	mu       sync.Mutex
	seeded   bool
	last     inputs
	current  Metrics
	seq      int64
	inflight sync.WaitGroup
}

func NewTracker(w DistanceWriter, logger *zap.SugaredLogger) *Tracker {
	return &Tracker{writer: w, logger: logger}
}

// Update returns the metrics for s and whether they were recomputed.
func (t *Tracker) Update(ctx context.Context, s aggregator.Snapshot) (Metrics, bool) {
	in := inputsOf(s)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seeded && equalInputs(in, t.last) {
		return t.current, false
	}
	t.seeded = true
	t.last = in
	t.current = Compute(s)

	if t.current.Distance != 0 && t.writer != nil {
		t.seq++
		seq, d := t.seq, t.current.Distance
		t.inflight.Add(1)
		go func() {
			defer t.inflight.Done()
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
			defer cancel()
			if err := t.writer.UpdateDistance(wctx, d, seq); err != nil {
				t.logger.Warnw("write distance failed", "seq", seq, "error", err)
			}
		}()
	}
	return t.current, true
}

func (t *Tracker) Current() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Wait blocks until outstanding distance writes return.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

func inputsOf(s aggregator.Snapshot) inputs {
	var in inputs
	if s.Self != nil {
		in.selfLat, in.selfLon, in.selfAlt = s.Self.Latitude, s.Self.Longitude, s.Self.Altitude
	}
	if s.Host != nil {
		in.hostLat, in.hostLon, in.hostAlt = s.Host.Latitude, s.Host.Longitude, s.Host.Altitude
	}
	return in
}

func equalInputs(a, b inputs) bool {
	return same(a.selfLat, b.selfLat) && same(a.selfLon, b.selfLon) && same(a.selfAlt, b.selfAlt) &&
		same(a.hostLat, b.hostLat) && same(a.hostLon, b.hostLon) && same(a.hostAlt, b.hostAlt)
}

func same(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
