package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/johndosdos/chatroom/internal/model"
)

// Memory is an in-process Store. It enforces the same uniqueness and
// foreign key rules as the SQL backends and is used by tests.
type Memory struct {
	mu       sync.RWMutex
	users    map[int64]model.User
	emails   map[string]int64
	messages map[int64]model.Message
	nextUser int64
	nextMsg  int64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[int64]model.User),
		emails:   make(map[string]int64),
		messages: make(map[int64]model.Message),
	}
}

func (s *Memory) Ping(context.Context) error { return nil }

func (s *Memory) Close() {}

func (s *Memory) CreateUser(_ context.Context, email, username, passwordHash string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email]; ok {
		return model.User{}, fmt.Errorf("internal/store: create user: %w", ErrDuplicate)
	}

	s.nextUser++
	u := model.User{
		ID:           s.nextUser,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	s.emails[email] = u.ID

	return u, nil
}

func (s *Memory) GetUser(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("internal/store: user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return model.User{}, fmt.Errorf("internal/store: get user by email: %w", ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Memory) UpdateUserOnline(_ context.Context, id int64, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("internal/store: user %d: %w", id, ErrNotFound)
	}
	u.Online = online
	s.users[id] = u

	return nil
}

func (s *Memory) ResetOnline(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, u := range s.users {
		if u.Online {
			u.Online = false
			s.users[id] = u
			n++
		}
	}
	return n, nil
}

func (s *Memory) ListOnlineUsers(context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []model.User
	for _, u := range s.users {
		if u.Online {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

func (s *Memory) CreateMessage(_ context.Context, senderID int64, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[senderID]; !ok {
		return model.Message{}, fmt.Errorf("internal/store: create message: %w", ErrForeignKey)
	}

	s.nextMsg++
	m := model.Message{
		ID:        s.nextMsg,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[m.ID] = m

	return m, nil
}

func (s *Memory) ListMessages(context.Context) ([]model.MessageView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]model.MessageView, 0, len(s.messages))
	for _, m := range s.messages {
		sender := s.users[m.SenderID]
		views = append(views, model.MessageView{
			ID:       m.ID,
			SenderID: m.SenderID,
			Sender:   sender.Username,
			Online:   sender.Online,
			Content:  m.Content,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	return views, nil
}

func (s *Memory) DeleteMessage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return fmt.Errorf("internal/store: message %d: %w", id, ErrNotFound)
	}
	delete(s.messages, id)

	return nil
}
