package position

// Record is a participant's remote position. Coordinates are nil until the
// device reports them.
type Record struct {
	UserID    string   `json:"user_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Seq       int64    `json:"seq"`
}

type UpdateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Seq       int64    `json:"seq"`
}

type DistanceRequest struct {
	Distance *float64 `json:"distance"`
	Seq      int64    `json:"seq"`
}

// Change announces that a participant moved. Coordinates are read back
// through the position endpoints, never pushed on the room feed.
type Change struct {
	UserID string `json:"user_id"`
	Seq    int64  `json:"seq"`
}
