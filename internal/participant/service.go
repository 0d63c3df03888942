package participant

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"backend-rendezvous/internal/db"
)

const maxNameLength = 30

var (
	ErrNotFound    = errors.New("participant not found")
	ErrInvalidName = errors.New("name must be 1-30 characters")
	ErrNoRoom      = errors.New("participant is not in a room")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Get(ctx context.Context, id string) (Participant, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, icon, room_key, role, latitude, longitude, altitude, distance, updated_at
		FROM users WHERE id=$1
	`, id)
	var p Participant
	if err := row.Scan(&p.ID, &p.Name, &p.Icon, &p.RoomKey, &p.Role, &p.Latitude, &p.Longitude, &p.Altitude, &p.Distance, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, err
	}
	return p, nil
}

func (s *Service) Settings(ctx context.Context, id string) (Settings, error) {
	var st Settings
	err := s.db.QueryRow(ctx, `SELECT name, icon FROM users WHERE id=$1`, id).Scan(&st.Name, &st.Icon)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	return st, err
}

// UpdateSettings replaces name and icon; a nil icon clears it.
func (s *Service) UpdateSettings(ctx context.Context, id string, st Settings) (Settings, error) {
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" || len([]rune(st.Name)) > maxNameLength {
		return Settings{}, ErrInvalidName
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET name=$2, icon=$3, updated_at=now()
		WHERE id=$1
	`, id, st.Name, st.Icon)
	if err != nil {
		return Settings{}, err
	}
	if tag.RowsAffected() == 0 {
		return Settings{}, ErrNotFound
	}
	return st, nil
}

// Reset detaches the participant from its room and forgets its position.
func (s *Service) Reset(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET latitude=NULL, longitude=NULL, altitude=NULL, distance=NULL,
		    room_key=NULL, role=NULL, updated_at=now()
		WHERE id=$1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RoomKey returns the room the participant is in.
func (s *Service) RoomKey(ctx context.Context, id string) (int, error) {
	var key *int
	err := s.db.QueryRow(ctx, `SELECT room_key FROM users WHERE id=$1`, id).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if key == nil {
		return 0, ErrNoRoom
	}
	return *key, nil
}

// InRoom reports whether the participant currently belongs to roomKey.
func (s *Service) InRoom(ctx context.Context, id string, roomKey int) (bool, error) {
	key, err := s.RoomKey(ctx, id)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoRoom) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return key == roomKey, nil
}

func (s *Service) Clients(ctx context.Context, roomKey int) ([]Client, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, icon, distance
		FROM users WHERE room_key=$1 AND role='client'
		ORDER BY id
	`, roomKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Distance); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
