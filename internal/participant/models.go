package participant

import "time"

const (
	RoleHost   = "host"
	RoleClient = "client"
)

type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      *string   `json:"icon"`
	RoomKey   *int      `json:"room_key"`
	Role      *string   `json:"role"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Altitude  *float64  `json:"altitude"`
	Distance  *float64  `json:"distance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Settings struct {
	Name string  `json:"name"`
	Icon *string `json:"icon"`
}

// Client is a room member as shown to the host.
type Client struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Icon     *string  `json:"icon"`
	Distance *float64 `json:"distance"`
}
