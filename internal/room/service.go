package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"backend-rendezvous/internal/db"
	"backend-rendezvous/internal/stream"
)

const (
	minKey         = 1000
	maxKey         = 9999
	maxKeyAttempts = 32
	maxNameLength  = 30
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomLocked     = errors.New("room is locked")
	ErrInvalidRoomKey = errors.New("room key must be four digits")
	ErrKeyExhausted   = errors.New("no free room key")
	ErrNotHost        = errors.New("only the host may change the room")
	ErrInvalidName    = errors.New("room name must be 1-30 characters")
	ErrKeyTaken       = errors.New("room key already in use")
)

const uniqueViolation = "23505"

var keyPattern = regexp.MustCompile(`^\d{4}$`)

// Publisher receives room feed events.
type Publisher interface {
	Publish(roomKey int, kind string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(int, string, any) {}

var randomKeyFn = func() int { return minKey + rand.IntN(maxKey-minKey+1) }

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

// ParseKey validates a user-entered room key.
func ParseKey(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if !keyPattern.MatchString(raw) {
		return 0, ErrInvalidRoomKey
	}
	key, _ := strconv.Atoi(raw)
	if key < minKey {
		return 0, ErrInvalidRoomKey
	}
	return key, nil
}

// GenerateKey draws random keys until it finds one that is not in use.
func (s *Service) GenerateKey(ctx context.Context) (int, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key := randomKeyFn()
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return 0, err
		}
		if !exists {
			return key, nil
		}
	}
	return 0, ErrKeyExhausted
}

// Create opens a room and makes hostID its host.
func (s *Service) Create(ctx context.Context, hostID string, key int, name string) (Room, error) {
	if key < minKey || key > maxKey {
		return Room{}, ErrInvalidRoomKey
	}
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return Room{}, ErrInvalidName
	}

	room := Room{Key: key, Name: name, HostID: hostID, IsOpen: true}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO rooms (room_key, name, host_id, is_open, updated_at)
			VALUES ($1,$2,$3,true,now())
			RETURNING updated_at
		`, key, name, hostID)
		if err := row.Scan(&room.UpdatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrKeyTaken
			}
			return fmt.Errorf("insert room: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users SET room_key=$2, role='host', updated_at=now()
			WHERE id=$1
		`, hostID, key); err != nil {
			return fmt.Errorf("assign host: %w", err)
		}
		return nil
	})
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

func (s *Service) Exists(ctx context.Context, key int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE room_key=$1)`, key).Scan(&exists)
	return exists, err
}

// IsOpen reports whether the room accepts members and touches it so
// retention keeps it alive. A missing room is reported as closed.
func (s *Service) IsOpen(ctx context.Context, key int) (bool, error) {
	var open bool
	err := s.db.QueryRow(ctx, `
		UPDATE rooms SET updated_at=now()
		WHERE room_key=$1
		RETURNING is_open
	`, key).Scan(&open)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return open, err
}

// Join makes userID a client of the room.
func (s *Service) Join(ctx context.Context, userID string, key int) (Room, error) {
	room, err := s.Details(ctx, key)
	if err != nil {
		return Room{}, err
	}
	if !room.IsOpen {
		return Room{}, ErrRoomLocked
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users SET room_key=$2, role='client', updated_at=now()
		WHERE id=$1
	`, userID, key)
	if err != nil {
		return Room{}, fmt.Errorf("join room: %w", err)
	}
	if _, err := s.db.Exec(ctx, `UPDATE rooms SET updated_at=now() WHERE room_key=$1`, key); err != nil {
		return Room{}, fmt.Errorf("touch room: %w", err)
	}

	s.events.Publish(key, stream.EventRoom, map[string]any{"joined": userID})
	return room, nil
}

// SetOpen locks or unlocks the room. Only its host may do so.
func (s *Service) SetOpen(ctx context.Context, hostID string, key int, open bool) (Room, error) {
	var room Room
	err := s.db.QueryRow(ctx, `
		UPDATE rooms SET is_open=$3, updated_at=now()
		WHERE room_key=$1 AND host_id=$2
		RETURNING room_key, name, host_id, is_open, updated_at
	`, key, hostID, open).Scan(&room.Key, &room.Name, &room.HostID, &room.IsOpen, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := s.Exists(ctx, key)
		if existsErr != nil {
			return Room{}, existsErr
		}
		if exists {
			return Room{}, ErrNotHost
		}
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, err
	}

	s.events.Publish(key, stream.EventRoom, room)
	return room, nil
}

func (s *Service) Details(ctx context.Context, key int) (Room, error) {
	var room Room
	err := s.db.QueryRow(ctx, `
		SELECT room_key, name, host_id, is_open, updated_at
		FROM rooms WHERE room_key=$1
	`, key).Scan(&room.Key, &room.Name, &room.HostID, &room.IsOpen, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, err
	}
	return room, nil
}
