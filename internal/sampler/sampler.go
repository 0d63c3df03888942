// Package sampler polls the device location on a fixed cadence and forwards
// complete fixes to the remote position store.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"backend-rendezvous/internal/locate"
)

const (
	DefaultInterval = 1500 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
	forwardTimeout  = 10 * time.Second
)

// Sample is a complete fix tagged with a per-sampler sequence number.
type Sample struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Seq       int64
}

type Forwarder interface {
	UpdatePosition(ctx context.Context, s Sample) error
}

type Option func(*Sampler)

func WithClock(c clock.Clock) Option { return func(s *Sampler) { s.clock = c } }

func WithInterval(d time.Duration) Option { return func(s *Sampler) { s.interval = d } }

func WithTimeout(d time.Duration) Option { return func(s *Sampler) { s.opts.Timeout = d } }

type Sampler struct {
	locator   locate.Locator
	forwarder Forwarder
	logger    *zap.SugaredLogger
	clock     clock.Clock
	interval  time.Duration
	opts      locate.Options

	mu         sync.Mutex
	running    bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}

	lat, lon, alt *float64
	lastErr       string
	forwarded     *[3]float64
	seq           int64
	inflight      sync.WaitGroup
}

func New(loc locate.Locator, fwd Forwarder, logger *zap.SugaredLogger, opts ...Option) *Sampler {
	s := &Sampler{
		locator:   loc,
		forwarder: fwd,
		logger:    logger,
		clock:     clock.New(),
		interval:  DefaultInterval,
		opts: locate.Options{
			HighAccuracy: true,
			Timeout:      DefaultTimeout,
			MaximumAge:   0,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start samples immediately and then once per interval. Calling Start on a
// running sampler does nothing.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.generation++
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.clock.Ticker(s.interval)
	go s.loop(ctx, s.generation, ticker, s.done)
}

// Stop halts sampling and waits for the loop to exit. Safe to call when not
// running. A sample still in flight is dropped when it completes.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.generation++
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
}

// Wait blocks until every fire-and-forget forward has returned.
func (s *Sampler) Wait() {
	s.inflight.Wait()
}

func (s *Sampler) loop(ctx context.Context, gen uint64, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.sample(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx, gen)
		}
	}
}

func (s *Sampler) sample(ctx context.Context, gen uint64) {
	pos, err := s.locator.CurrentPosition(ctx, s.opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	if err != nil {
		s.lastErr = err.Error()
		s.logger.Debugw("location sample failed", "error", err)
		return
	}
	lat, lon := pos.Latitude, pos.Longitude
	s.lat, s.lon = &lat, &lon
	s.alt = nil
	if pos.Altitude != nil {
		alt := *pos.Altitude
		s.alt = &alt
	}
	s.maybeForward(ctx)
}

// maybeForward sends the current fix when it is complete and differs from the
// last one sent. Caller holds s.mu.
func (s *Sampler) maybeForward(ctx context.Context) {
	if s.lat == nil || s.lon == nil || s.alt == nil {
		return
	}
	cur := [3]float64{*s.lat, *s.lon, *s.alt}
	if s.forwarded != nil && *s.forwarded == cur {
		return
	}
	s.forwarded = &cur
	s.seq++
	sample := Sample{Latitude: cur[0], Longitude: cur[1], Altitude: cur[2], Seq: s.seq}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forwardTimeout)
		defer cancel()
		if err := s.forwarder.UpdatePosition(fctx, sample); err != nil {
			s.logger.Warnw("forward position failed", "seq", sample.Seq, "error", err)
		}
	}()
}

// Position returns the latest coordinates; any of them may be nil.
func (s *Sampler) Position() (lat, lon, alt *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPtr(s.lat), copyPtr(s.lon), copyPtr(s.alt)
}

// Err returns the message of the most recent failed sample, or "".
func (s *Sampler) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
