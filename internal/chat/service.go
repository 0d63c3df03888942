package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"backend-rendezvous/internal/db"
	"backend-rendezvous/internal/stream"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNotMember       = errors.New("participant is not in this room")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidImageURL = errors.New("image url must be absolute http(s)")
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

// Add appends a text message under the sender's current display name.
func (s *Service) Add(ctx context.Context, userID string, roomKey int, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	return s.insert(ctx, userID, roomKey, text)
}

// AddImage appends a message that refers to an uploaded image.
func (s *Service) AddImage(ctx context.Context, userID string, roomKey int, imageURL string) (Message, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Message{}, ErrInvalidImageURL
	}
	return s.insert(ctx, userID, roomKey, ImagePrefix+imageURL)
}

func (s *Service) insert(ctx context.Context, userID string, roomKey int, body string) (Message, error) {
	var name string
	var member *int
	err := s.db.QueryRow(ctx, `SELECT name, room_key FROM users WHERE id=$1`, userID).Scan(&name, &member)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotMember
	}
	if err != nil {
		return Message{}, fmt.Errorf("resolve sender: %w", err)
	}
	if member == nil || *member != roomKey {
		return Message{}, ErrNotMember
	}

	msg := Message{UserID: userID, UserName: name, RoomKey: roomKey, Message: body}
	row := s.db.QueryRow(ctx, `
		INSERT INTO messages (user_id, user_name, room_key, message)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, userID, name, roomKey, body)
	if err := row.Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return Message{}, err
	}

	s.events.Publish(roomKey, stream.EventMessage, msg)
	return msg, nil
}

// List returns the room's messages, oldest first.
func (s *Service) List(ctx context.Context, roomKey int) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, user_name, room_key, message, created_at
		FROM messages WHERE room_key=$1
		ORDER BY created_at, id
	`, roomKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.UserName, &m.RoomKey, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Delete removes one of the caller's own messages.
func (s *Service) Delete(ctx context.Context, id int64, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM messages WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}
