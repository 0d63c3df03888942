package position

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"

	"backend-rendezvous/internal/db"
	"backend-rendezvous/internal/stream"
)

var (
	ErrNotFound        = errors.New("position not found")
	ErrStaleWrite      = errors.New("write is older than the stored record")
	ErrInvalidPosition = errors.New("latitude and longitude out of range")
	ErrInvalidSeq      = errors.New("seq must be positive")
)

// Publisher receives room feed events.
type Publisher interface {
	Publish(roomKey int, kind string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(int, string, any) {}

type Service struct {
	db     db.Querier
	events Publisher
}

func NewService(db db.Querier, events Publisher) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	return &Service{db: db, events: events}
}

// UpdatePosition stores a fix unless a write with the same or a later
// sequence number has already landed.
func (s *Service) UpdatePosition(ctx context.Context, userID string, lat, lon float64, alt *float64, seq int64) (Record, error) {
	if !validCoordinate(lat, 90) || !validCoordinate(lon, 180) {
		return Record{}, ErrInvalidPosition
	}
	if seq <= 0 {
		return Record{}, ErrInvalidSeq
	}

	var roomKey *int
	err := s.db.QueryRow(ctx, `
		UPDATE users
		SET latitude=$2, longitude=$3, altitude=$4, position_seq=$5, updated_at=now()
		WHERE id=$1 AND position_seq < $5
		RETURNING room_key
	`, userID, lat, lon, alt, seq).Scan(&roomKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, s.rejected(ctx, userID)
	}
	if err != nil {
		return Record{}, err
	}

	rec := Record{UserID: userID, Latitude: &lat, Longitude: &lon, Altitude: alt, Seq: seq}
	if roomKey != nil {
		s.events.Publish(*roomKey, stream.EventPosition, Change{UserID: userID, Seq: seq})
	}
	return rec, nil
}

// UpdateDistance stores the distance to the host under its own sequence.
func (s *Service) UpdateDistance(ctx context.Context, userID string, distance float64, seq int64) error {
	if seq <= 0 {
		return ErrInvalidSeq
	}
	var stored int64
	err := s.db.QueryRow(ctx, `
		UPDATE users
		SET distance=$2, distance_seq=$3, updated_at=now()
		WHERE id=$1 AND distance_seq < $3
		RETURNING distance_seq
	`, userID, distance, seq).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.rejected(ctx, userID)
	}
	return err
}

func (s *Service) Self(ctx context.Context, userID string) (Record, error) {
	return s.scan(s.db.QueryRow(ctx, `
		SELECT id, latitude, longitude, altitude, position_seq
		FROM users WHERE id=$1
	`, userID))
}

// Host returns the position of the host of the caller's room. A host that
// has reset or moved to another room no longer counts.
func (s *Service) Host(ctx context.Context, userID string) (Record, error) {
	return s.scan(s.db.QueryRow(ctx, `
		SELECT h.id, h.latitude, h.longitude, h.altitude, h.position_seq
		FROM users u
		JOIN rooms r ON r.room_key = u.room_key
		JOIN users h ON h.id = r.host_id AND h.room_key = r.room_key AND h.role = 'host'
		WHERE u.id=$1
	`, userID))
}

func (s *Service) scan(row pgx.Row) (Record, error) {
	var rec Record
	if err := row.Scan(&rec.UserID, &rec.Latitude, &rec.Longitude, &rec.Altitude, &rec.Seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) rejected(ctx context.Context, userID string) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleWrite
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}
