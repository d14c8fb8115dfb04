package models

import "time"

// Session is the explicit login handle handed to clients instead of any
// global "current user" state. Stored in Redis keyed by Token.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
