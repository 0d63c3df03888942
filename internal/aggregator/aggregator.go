// Package aggregator keeps the latest self and host positions read from the
// remote store, refreshing on a timer and on demand.
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval = 5 * time.Second
	readTimeout     = 10 * time.Second
)

// Position is a remote position record. Coordinates are nil until reported.
type Position struct {
	UserID    string
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
	Seq       int64
}

type Snapshot struct {
	Self *Position
	Host *Position
	// Err reports whether either read of the latest fetch failed.
	Err bool
}

// Source reads position records. A nil record with a nil error means the
// record does not exist yet.
type Source interface {
	Self(ctx context.Context) (*Position, error)
	Host(ctx context.Context) (*Position, error)
}

type Option func(*Aggregator)

func WithClock(c clock.Clock) Option { return func(a *Aggregator) { a.clock = c } }

func WithInterval(d time.Duration) Option { return func(a *Aggregator) { a.interval = d } }

type Aggregator struct {
	source   Source
	logger   *zap.SugaredLogger
	clock    clock.Clock
	interval time.Duration

	mu         sync.Mutex
	running    bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	trigger    chan struct{}

	snap Snapshot
	subs map[*Subscription]struct{}
}

func New(src Source, logger *zap.SugaredLogger, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:   src,
		logger:   logger,
		clock:    clock.New(),
		interval: DefaultInterval,
		trigger:  make(chan struct{}, 1),
		subs:     make(map[*Subscription]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start fetches immediately and then once per interval. No-op when running.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.generation++
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	ticker := a.clock.Ticker(a.interval)
	go a.loop(ctx, a.generation, ticker, a.done)
}

// Stop halts refreshing. Results of a fetch in flight are dropped.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.generation++
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	cancel()
	<-done
}

// Trigger requests a fetch ahead of the next tick. Requests made while one
// is already pending collapse into it.
func (a *Aggregator) Trigger() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

func (a *Aggregator) loop(ctx context.Context, gen uint64, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	a.fetch(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.fetch(ctx, gen)
		case <-a.trigger:
			a.fetch(ctx, gen)
		}
	}
}

func (a *Aggregator) fetch(ctx context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var (
		self, host       *Position
		selfErr, hostErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		self, selfErr = a.source.Self(ctx)
		return selfErr
	})
	g.Go(func() error {
		host, hostErr = a.source.Host(ctx)
		return hostErr
	})
	if err := g.Wait(); err != nil {
		a.logger.Warnw("position fetch failed", "self_error", selfErr, "host_error", hostErr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return
	}
	next := a.snap
	next.Err = selfErr != nil || hostErr != nil
	if selfErr == nil {
		next.Self = accept(a.snap.Self, self)
	}
	if hostErr == nil {
		next.Host = accept(a.snap.Host, host)
	}
	if equalSnapshot(next, a.snap) {
		return
	}
	a.snap = next
	for sub := range a.subs {
		sub.offer(next)
	}
}

// accept returns the record to keep: a read of the same participant carrying
// an older sequence than the one held is discarded.
func accept(prev, read *Position) *Position {
	if read == nil {
		return nil
	}
	if prev != nil && prev.UserID == read.UserID && read.Seq < prev.Seq {
		return prev
	}
	return read
}

func equalSnapshot(a, b Snapshot) bool {
	return a.Err == b.Err && equalPosition(a.Self, b.Self) && equalPosition(a.Host, b.Host)
}

func equalPosition(a, b *Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID && a.Seq == b.Seq &&
		equalFloat(a.Latitude, b.Latitude) &&
		equalFloat(a.Longitude, b.Longitude) &&
		equalFloat(a.Altitude, b.Altitude)
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
