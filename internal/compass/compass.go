// Package compass turns raw device orientation samples into a smoothed,
// declination-corrected heading.
package compass

import (
	"context"
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"

	"backend-rendezvous/internal/shared/geo"
)

const smoothing = 0.1

var ErrPermissionDenied = errors.New("orientation permission denied")

type PermissionState int

const (
	Unrequested PermissionState = iota
	Requesting
	Granted
)

func (p PermissionState) String() string {
	switch p {
	case Requesting:
		return "requesting"
	case Granted:
		return "granted"
	default:
		return "unrequested"
	}
}

// Orientation is one device orientation sample. CompassHeading is set on
// platforms that report a heading directly; otherwise Alpha is the rotation
// around the z axis.
type Orientation struct {
	Alpha          *float64 `json:"alpha"`
	CompassHeading *float64 `json:"compass_heading"`
	// Absolute is false for samples relative to an arbitrary start
	// orientation. Unset means absolute.
	Absolute *bool `json:"absolute,omitempty"`
}

// IsAbsolute reports whether the sample is referenced to north.
func (o Orientation) IsAbsolute() bool {
	return o.Absolute == nil || *o.Absolute
}

// OrientationSource delivers samples to fn until the returned release func is
// called. Subscribe must not invoke fn synchronously.
type OrientationSource interface {
	Subscribe(fn func(Orientation)) (release func(), err error)
}

type DeclinationLookup interface {
	Lookup(ctx context.Context, lat, lon float64) (float64, error)
}

// PermissionGate asks the user for sensor consent and returns the answer.
type PermissionGate interface {
	RequestPermission(ctx context.Context) (string, error)
}

type Alerter interface {
	Alert(msg string)
}

// Sources lists the orientation feeds the platform exposes. Absolute is
// preferred; either may be nil.
type Sources struct {
	Absolute OrientationSource
	Relative OrientationSource
}

type Option func(*Compass)

// WithPermissionGate makes RequestPermission ask gate for consent and report
// refusals through alert.
func WithPermissionGate(gate PermissionGate, alert Alerter) Option {
	return func(c *Compass) {
		c.gate = gate
		c.alert = alert
	}
}

type Compass struct {
	sources Sources
	decl    DeclinationLookup
	logger  *zap.SugaredLogger
	gate    PermissionGate
	alert   Alerter

	mu          sync.Mutex
	permission  PermissionState
	visible     bool
	closed      bool
	release     func()
	subID       uint64
	heading     *float64
	declination float64
	location    *[2]float64
	lookupGen   uint64
}

func New(sources Sources, decl DeclinationLookup, logger *zap.SugaredLogger, opts ...Option) *Compass {
	c := &Compass{
		sources: sources,
		decl:    decl,
		logger:  logger,
		visible: true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RequestPermission grants orientation access, consulting the permission
// gate when one is configured. Only an explicit "granted" answer succeeds.
func (c *Compass) RequestPermission(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.permission != Unrequested {
		c.mu.Unlock()
		return nil
	}
	if c.gate == nil {
		c.permission = Granted
		c.subscribeLocked()
		c.mu.Unlock()
		return nil
	}
	c.permission = Requesting
	c.mu.Unlock()

	answer, err := c.gate.RequestPermission(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.permission = Unrequested
		c.logger.Errorw("orientation permission request failed", "error", err)
		return err
	}
	if answer != "granted" {
		c.permission = Unrequested
		if c.alert != nil {
			c.alert.Alert("sensor permission is required")
		}
		return ErrPermissionDenied
	}
	c.permission = Granted
	if !c.closed {
		c.subscribeLocked()
	}
	return nil
}

// SetVisible releases the orientation subscription while hidden and
// reacquires it on return when permission is held.
func (c *Compass) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = visible
	if !visible {
		c.releaseLocked()
		return
	}
	if c.permission == Granted && !c.closed {
		c.subscribeLocked()
	}
}

// Close releases every subscription. The compass cannot be reused.
func (c *Compass) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.releaseLocked()
}

func (c *Compass) subscribeLocked() {
	if c.release != nil || !c.visible {
		return
	}
	src := c.sources.Absolute
	if src == nil {
		src = c.sources.Relative
	}
	if src == nil {
		c.logger.Warn("no orientation source available")
		return
	}
	c.subID++
	id := c.subID
	release, err := src.Subscribe(func(o Orientation) { c.handle(id, o) })
	if err != nil {
		c.logger.Errorw("orientation subscribe failed", "error", err)
		return
	}
	c.release = release
}

func (c *Compass) releaseLocked() {
	if c.release == nil {
		return
	}
	c.release()
	c.release = nil
	c.subID++
}

func (c *Compass) handle(id uint64, o Orientation) {
	var raw float64
	switch {
	case o.CompassHeading != nil:
		raw = *o.CompassHeading
	case o.Alpha != nil:
		raw = 360 - *o.Alpha
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.subID || c.release == nil {
		return
	}
	deg := geo.NormalizeDegrees(raw + c.declination)
	if c.heading != nil {
		prev := *c.heading
		deg = geo.NormalizeDegrees(prev + geo.ShortestTurn(prev, deg)*smoothing)
	}
	c.heading = &deg
}

// UpdateLocation refreshes the magnetic declination when the location has
// changed. A failed lookup keeps the previous declination.
func (c *Compass) UpdateLocation(ctx context.Context, lat, lon float64) {
	c.mu.Lock()
	loc := [2]float64{lat, lon}
	if c.location != nil && *c.location == loc {
		c.mu.Unlock()
		return
	}
	c.location = &loc
	c.lookupGen++
	gen := c.lookupGen
	c.mu.Unlock()

	if c.decl == nil {
		return
	}
	d, err := c.decl.Lookup(ctx, lat, lon)
	if err != nil {
		c.logger.Warnw("declination lookup failed", "lat", lat, "lon", lon, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.lookupGen {
		c.declination = d
	}
}

// Heading is the smoothed heading in [0, 360), 0 before the first sample.
func (c *Compass) Heading() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.heading == nil {
		return 0
	}
	return *c.heading
}

// Rotation is the heading rounded to whole degrees in [0, 360).
func (c *Compass) Rotation() int {
	return int(math.Floor(c.Heading()+0.5)) % 360
}

func (c *Compass) Declination() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declination
}

func (c *Compass) Permission() PermissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

func (c *Compass) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release != nil
}
