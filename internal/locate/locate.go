// Package locate provides device position sources for the navigator agent.
package locate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// Options mirrors the knobs a one-shot position request accepts.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

type Position struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
	Timestamp time.Time
}

type Locator interface {
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
}

// Fixed always reports the same position.
type Fixed struct {
	Position Position
}

func (f Fixed) CurrentPosition(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, ErrTimeout
	}
	p := f.Position
	p.Timestamp = time.Now()
	return p, nil
}

// ParseFixed reads "lat,lon" or "lat,lon,alt".
func ParseFixed(s string) (Fixed, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return Fixed{}, fmt.Errorf("fixed position %q: want lat,lon[,alt]", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Fixed{}, fmt.Errorf("fixed position %q: %w", s, err)
		}
		vals[i] = v
	}
	if vals[0] < -90 || vals[0] > 90 || vals[1] < -180 || vals[1] > 180 {
		return Fixed{}, fmt.Errorf("fixed position %q: out of range", s)
	}
	pos := Position{Latitude: vals[0], Longitude: vals[1]}
	if len(vals) == 3 {
		alt := vals[2]
		pos.Altitude = &alt
	}
	return Fixed{Position: pos}, nil
}
