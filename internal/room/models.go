package room

import "time"

type Room struct {
	Key       int       `json:"room_key"`
	Name      string    `json:"name"`
	HostID    string    `json:"host_id"`
	IsOpen    bool      `json:"is_open"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Key  int    `json:"room_key"`
	Name string `json:"name"`
}

type JoinRequest struct {
	Key string `json:"room_key"`
}

type StatusRequest struct {
	IsOpen bool `json:"is_open"`
}
