package locate

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// NMEA keeps the latest fix decoded from a stream of NMEA 0183 sentences.
type NMEA struct {
	mu      sync.Mutex
	fix     *Position
	updated chan struct{}
	done    bool
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewNMEA(logger *zap.SugaredLogger) *NMEA {
	return &NMEA{
		updated: make(chan struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// OpenSerial opens a GPS receiver on a serial port at the given baud rate.
func OpenSerial(port string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PermissionDenied {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}
	return p, nil
}

// Run consumes sentences until r is exhausted or ctx is cancelled.
func (n *NMEA) Run(ctx context.Context, r io.Reader) error {
	defer n.finish()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := n.Feed(line); err != nil {
			n.logger.Debugw("skipping nmea sentence", "sentence", line, "error", err)
		}
	}
	return sc.Err()
}

// Feed decodes one sentence and records it when it carries a valid fix.
// Sentences other than GGA and RMC are ignored.
func (n *NMEA) Feed(line string) error {
	s, err := nmea.Parse(line)
	if err != nil {
		return err
	}
	switch s.DataType() {
	case nmea.TypeGGA:
		gga := s.(nmea.GGA)
		if gga.FixQuality == nmea.Invalid {
			return nil
		}
		alt := gga.Altitude
		n.record(gga.Latitude, gga.Longitude, &alt)
	case nmea.TypeRMC:
		rmc := s.(nmea.RMC)
		if rmc.Validity != nmea.ValidRMC {
			return nil
		}
		n.record(rmc.Latitude, rmc.Longitude, nil)
	}
	return nil
}

func (n *NMEA) record(lat, lon float64, alt *float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if alt == nil && n.fix != nil {
		alt = n.fix.Altitude
	}
	n.fix = &Position{Latitude: lat, Longitude: lon, Altitude: alt, Timestamp: n.now()}
	close(n.updated)
	n.updated = make(chan struct{})
}

func (n *NMEA) finish() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.done = true
	close(n.updated)
	n.updated = make(chan struct{})
}

// CurrentPosition returns a fix no older than opts.MaximumAge, waiting for a
// fresh one up to opts.Timeout. A zero MaximumAge only accepts fixes received
// after the call.
func (n *NMEA) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	requested := n.now()
	for {
		n.mu.Lock()
		fix, done, wait := n.fix, n.done, n.updated
		n.mu.Unlock()

		if fix != nil && fresh(fix.Timestamp, requested, opts.MaximumAge) {
			return *fix, nil
		}
		if done {
			return Position{}, ErrPositionUnavailable
		}
		select {
		case <-ctx.Done():
			return Position{}, ErrTimeout
		case <-wait:
		}
	}
}

func fresh(ts, requested time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return !ts.Before(requested)
	}
	return requested.Sub(ts) <= maxAge
}
