// Package model defines data structure.
package model

import "time"

// User holds the identity record of a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Online       bool      `json:"online"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message holds information about a single persisted message.
type Message struct {
	ID        int64     `json:"id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageView is a Message joined with its sender, as served by GET /messages.
type MessageView struct {
	ID       int64  `json:"id"`
	SenderID int64  `json:"sender_id"`
	Sender   string `json:"sender"`
	Online   bool   `json:"online"`
	Content  string `json:"content"`
}
