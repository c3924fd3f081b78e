// Package store is the persistence layer for users and messages. The
// Postgres, SQLite and Memory implementations all satisfy Store and report
// failures with the sentinel errors below.
package store

import (
	"context"
	"errors"

	"github.com/johndosdos/chatroom/internal/model"
)

var (
	// ErrNotFound is returned when a referenced user or message is absent.
	ErrNotFound = errors.New("internal/store: not found")
	// ErrDuplicate is returned when a user's email is already registered.
	ErrDuplicate = errors.New("internal/store: duplicate")
	// ErrForeignKey is returned when a message references an absent sender.
	ErrForeignKey = errors.New("internal/store: foreign key violation")
)

// Store is the persistence contract shared by every backend.
type Store interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	UpdateUserOnline(ctx context.Context, id int64, online bool) error
	ListOnlineUsers(ctx context.Context) ([]model.User, error)
	// ResetOnline clears every online flag and returns how many were set.
	ResetOnline(ctx context.Context) (int64, error)

	CreateMessage(ctx context.Context, senderID int64, content string) (model.Message, error)
	ListMessages(ctx context.Context) ([]model.MessageView, error)
	DeleteMessage(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close()
}
