package chat

import "time"

// ImagePrefix marks a message whose body is the URL of an uploaded image.
const ImagePrefix = "IMAGE_URL::"

type Message struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	RoomKey   int       `json:"room_key"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type SendRequest struct {
	Message string `json:"message"`
}

type ImageRequest struct {
	URL string `json:"url"`
}
