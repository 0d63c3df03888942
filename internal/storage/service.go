package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"backend-rendezvous/internal/db"
)

const (
	KindIcon      = "icon"
	KindChatImage = "chat_image"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrNoStore         = errors.New("object storage is not configured")
)

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "heic": true,
}

type Object struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type Service struct {
	db    db.Querier
	store ObjectStore
	now   func() time.Time
}

func NewService(db db.Querier, store ObjectStore) *Service {
	return &Service{db: db, store: store, now: time.Now}
}

// UploadIcon stores a participant icon at icons/<user>/<unix-ms>.<ext>.
func (s *Service) UploadIcon(ctx context.Context, userID, filename string, r io.Reader) (Object, error) {
	return s.upload(ctx, userID, "icons/"+userID, KindIcon, filename, r)
}

// UploadChatImage stores a chat image at chat-images/<room>/<unix-ms>.<ext>.
func (s *Service) UploadChatImage(ctx context.Context, userID string, roomKey int, filename string, r io.Reader) (Object, error) {
	return s.upload(ctx, userID, "chat-images/"+strconv.Itoa(roomKey), KindChatImage, filename, r)
}

func (s *Service) upload(ctx context.Context, userID, folder, kind, filename string, r io.Reader) (Object, error) {
	if s.store == nil {
		return Object{}, ErrNoStore
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if !imageExtensions[ext] {
		return Object{}, ErrUnsupportedType
	}
	name := fmt.Sprintf("%d.%s", s.now().UnixMilli(), ext)
	url, err := s.store.Put(ctx, folder, name, r)
	if err != nil {
		return Object{}, fmt.Errorf("store %s: %w", kind, err)
	}
	id, err := s.SaveObject(ctx, userID, url, kind)
	if err != nil {
		return Object{}, err
	}
	return Object{ID: id, URL: url, Kind: kind}, nil
}

func (s *Service) SaveObject(ctx context.Context, userID, url, kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
	`, id, userID, url, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}
