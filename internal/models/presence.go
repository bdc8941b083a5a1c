package models

import "time"

// TypingUser identifies a user currently composing a message in a room.
type TypingUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// OnlineUser is one entry of a room presence snapshot.
type OnlineUser struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	LastSeen time.Time `json:"lastSeen"`
}
