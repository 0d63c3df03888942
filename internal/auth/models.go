package auth

import "time"

// User is the identity half of a participant row.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Icon             *string   `json:"icon,omitempty"`
	DeviceSecretHash string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Name string `json:"name"`
}

// Registration is returned once; the device secret is never retrievable
// afterwards.
type Registration struct {
	User         User          `json:"user"`
	DeviceSecret string        `json:"device_secret"`
	Tokens       TokenResponse `json:"tokens"`
}

type LoginRequest struct {
	UserID       string `json:"user_id"`
	DeviceSecret string `json:"device_secret"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
