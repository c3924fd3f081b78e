package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/johndosdos/chatroom/internal/database"
	"github.com/johndosdos/chatroom/internal/model"
	"github.com/johndosdos/chatroom/sql/schema"
)

// Postgres error codes we translate into sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres is the PostgreSQL-backed Store.
type Postgres struct {
	pool    *pgxpool.Pool
	queries *database.Queries
}

// NewPostgres connects a pool to databaseURL and verifies it with a ping.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("internal/store: could not connect to the postgresql database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("internal/store: postgres ping failed: %w", err)
	}

	return &Postgres{pool: pool, queries: database.New(pool)}, nil
}

// Migrate applies the embedded goose migrations.
func (s *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(schema.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("internal/store: %w", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("internal/store: goose up: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) CreateUser(ctx context.Context, email, username, passwordHash string) (model.User, error) {
	u, err := s.queries.CreateUser(ctx, database.CreateUserParams{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return model.User{}, translatePgError("create user", err)
	}
	return userFromRow(u), nil
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, translatePgError("get user", err)
	}
	return userFromRow(u), nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return model.User{}, translatePgError("get user by email", err)
	}
	return userFromRow(u), nil
}

func (s *Postgres) UpdateUserOnline(ctx context.Context, id int64, online bool) error {
	n, err := s.queries.UpdateUserOnline(ctx, database.UpdateUserOnlineParams{ID: id, Online: online})
	if err != nil {
		return translatePgError("update user online", err)
	}
	if n == 0 {
		return fmt.Errorf("internal/store: user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) ResetOnline(ctx context.Context) (int64, error) {
	n, err := s.queries.ResetOnline(ctx)
	if err != nil {
		return 0, translatePgError("reset online", err)
	}
	return n, nil
}

func (s *Postgres) ListOnlineUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.queries.ListOnlineUsers(ctx)
	if err != nil {
		return nil, translatePgError("list online users", err)
	}

	users := make([]model.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, userFromRow(u))
	}
	return users, nil
}

func (s *Postgres) CreateMessage(ctx context.Context, senderID int64, content string) (model.Message, error) {
	m, err := s.queries.CreateMessage(ctx, database.CreateMessageParams{
		SenderID: senderID,
		Content:  content,
	})
	if err != nil {
		return model.Message{}, translatePgError("create message", err)
	}

	return model.Message{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Time,
	}, nil
}

func (s *Postgres) ListMessages(ctx context.Context) ([]model.MessageView, error) {
	rows, err := s.queries.ListMessages(ctx)
	if err != nil {
		return nil, translatePgError("list messages", err)
	}

	views := make([]model.MessageView, 0, len(rows))
	for _, m := range rows {
		views = append(views, model.MessageView{
			ID:       m.ID,
			SenderID: m.SenderID,
			Sender:   m.Username,
			Online:   m.Online,
			Content:  m.Content,
		})
	}
	return views, nil
}

func (s *Postgres) DeleteMessage(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteMessage(ctx, id)
	if err != nil {
		return translatePgError("delete message", err)
	}
	if n == 0 {
		return fmt.Errorf("internal/store: message %d: %w", id, ErrNotFound)
	}
	return nil
}

func userFromRow(u database.User) model.User {
	return model.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Online:       u.Online,
		CreatedAt:    u.CreatedAt.Time,
	}
}

func translatePgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("internal/store: %s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("internal/store: %s: %w", op, ErrDuplicate)
		case pgForeignKeyViolation:
			return fmt.Errorf("internal/store: %s: %w", op, ErrForeignKey)
		}
	}

	return fmt.Errorf("internal/store: %s: %w", op, err)
}
