package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/johndosdos/chatroom/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	online BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id INTEGER NOT NULL REFERENCES users (id),
	content TEXT NOT NULL CHECK (content <> ''),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_sender_id ON messages (sender_id);
`

// SQLite is the file-backed Store used when no DATABASE_URL is configured.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at path. The special
// path ":memory:" gives a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "./database.db"
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("internal/store: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("internal/store: open sqlite: %w", err)
	}

	// One connection keeps ":memory:" a single database and serialises
	// writers the way sqlite wants anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("internal/store: sqlite ping failed: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("internal/store: init sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	s.db.Close()
}

func (s *SQLite) CreateUser(ctx context.Context, email, username, passwordHash string) (model.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, email, username, passwordHash, now)
	if err != nil {
		return model.User{}, translateSQLiteError("create user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("internal/store: create user: %w", err)
	}

	return model.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func (s *SQLite) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, online, created_at
		FROM users WHERE id = ?
	`, id)
	u, err := scanSQLiteUser(row)
	if err != nil {
		return model.User{}, translateSQLiteError("get user", err)
	}
	return u, nil
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, online, created_at
		FROM users WHERE email = ?
	`, email)
	u, err := scanSQLiteUser(row)
	if err != nil {
		return model.User{}, translateSQLiteError("get user by email", err)
	}
	return u, nil
}

func (s *SQLite) UpdateUserOnline(ctx context.Context, id int64, online bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET online = ? WHERE id = ?`, online, id)
	if err != nil {
		return translateSQLiteError("update user online", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("internal/store: update user online: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("internal/store: user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) ResetOnline(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET online = 0 WHERE online`)
	if err != nil {
		return 0, translateSQLiteError("reset online", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("internal/store: reset online: %w", err)
	}
	return n, nil
}

func (s *SQLite) ListOnlineUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, online, created_at
		FROM users WHERE online ORDER BY id
	`)
	if err != nil {
		return nil, translateSQLiteError("list online users", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("internal/store: list online users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) CreateMessage(ctx context.Context, senderID int64, content string) (model.Message, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, content, created_at)
		VALUES (?, ?, ?)
	`, senderID, content, now)
	if err != nil {
		return model.Message{}, translateSQLiteError("create message", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Message{}, fmt.Errorf("internal/store: create message: %w", err)
	}

	return model.Message{ID: id, SenderID: senderID, Content: content, CreatedAt: now}, nil
}

func (s *SQLite) ListMessages(ctx context.Context) ([]model.MessageView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_id, u.username, u.online, m.content
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		ORDER BY m.id
	`)
	if err != nil {
		return nil, translateSQLiteError("list messages", err)
	}
	defer rows.Close()

	views := []model.MessageView{}
	for rows.Next() {
		var v model.MessageView
		if err := rows.Scan(&v.ID, &v.SenderID, &v.Sender, &v.Online, &v.Content); err != nil {
			return nil, fmt.Errorf("internal/store: list messages: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *SQLite) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return translateSQLiteError("delete message", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("internal/store: delete message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("internal/store: message %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Online, &u.CreatedAt)
	return u, err
}

func translateSQLiteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("internal/store: %s: %w", op, ErrNotFound)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("internal/store: %s: %w", op, ErrDuplicate)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("internal/store: %s: %w", op, ErrForeignKey)
		}
	}

	return fmt.Errorf("internal/store: %s: %w", op, err)
}
