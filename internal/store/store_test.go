package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatroom/internal/store"
	"github.com/johndosdos/chatroom/internal/testutil"
)

func TestMemory(t *testing.T) {
	runStoreTests(t, func(t *testing.T) store.Store { return store.NewMemory() })
}

func TestSQLite(t *testing.T) {
	runStoreTests(t, func(t *testing.T) store.Store { return testutil.SQLiteStore(t) })
}

func TestPostgres(t *testing.T) {
	runStoreTests(t, func(t *testing.T) store.Store { return testutil.PostgresStore(t) })
}

func runStoreTests(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("create_and_get_user", func(t *testing.T) {
		s := newStore(t)

		u, err := s.CreateUser(ctx, "alice@test.com", "alice", "hash")
		require.NoError(t, err)
		assert.NotZero(t, u.ID)
		assert.False(t, u.Online)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "alice@test.com", got.Email)
		assert.Equal(t, "hash", got.PasswordHash)

		byEmail, err := s.GetUserByEmail(ctx, "alice@test.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CreateUser(ctx, "dup@test.com", "one", "hash")
		require.NoError(t, err)

		_, err = s.CreateUser(ctx, "dup@test.com", "two", "hash")
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("missing_user", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetUser(ctx, 999)
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.GetUserByEmail(ctx, "nobody@test.com")
		assert.ErrorIs(t, err, store.ErrNotFound)

		err = s.UpdateUserOnline(ctx, 999, true)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("online_flag", func(t *testing.T) {
		s := newStore(t)

		a, err := s.CreateUser(ctx, "a@test.com", "a", "hash")
		require.NoError(t, err)
		b, err := s.CreateUser(ctx, "b@test.com", "b", "hash")
		require.NoError(t, err)

		require.NoError(t, s.UpdateUserOnline(ctx, a.ID, true))
		require.NoError(t, s.UpdateUserOnline(ctx, a.ID, true))

		online, err := s.ListOnlineUsers(ctx)
		require.NoError(t, err)
		require.Len(t, online, 1)
		assert.Equal(t, a.ID, online[0].ID)

		require.NoError(t, s.UpdateUserOnline(ctx, a.ID, false))
		got, err := s.GetUser(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, got.Online)

		got, err = s.GetUser(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, got.Online)
	})

	t.Run("reset_online", func(t *testing.T) {
		s := newStore(t)

		a, err := s.CreateUser(ctx, "a@test.com", "a", "hash")
		require.NoError(t, err)
		b, err := s.CreateUser(ctx, "b@test.com", "b", "hash")
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, "c@test.com", "c", "hash")
		require.NoError(t, err)

		require.NoError(t, s.UpdateUserOnline(ctx, a.ID, true))
		require.NoError(t, s.UpdateUserOnline(ctx, b.ID, true))

		n, err := s.ResetOnline(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		online, err := s.ListOnlineUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, online)

		n, err = s.ResetOnline(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("messages", func(t *testing.T) {
		s := newStore(t)

		u, err := s.CreateUser(ctx, "m@test.com", "mallory", "hash")
		require.NoError(t, err)
		require.NoError(t, s.UpdateUserOnline(ctx, u.ID, true))

		first, err := s.CreateMessage(ctx, u.ID, "hello")
		require.NoError(t, err)
		assert.Equal(t, u.ID, first.SenderID)
		second, err := s.CreateMessage(ctx, u.ID, "world")
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)

		views, err := s.ListMessages(ctx)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "hello", views[0].Content)
		assert.Equal(t, "mallory", views[0].Sender)
		assert.True(t, views[0].Online)
		assert.Equal(t, "world", views[1].Content)

		require.NoError(t, s.DeleteMessage(ctx, first.ID))
		assert.ErrorIs(t, s.DeleteMessage(ctx, first.ID), store.ErrNotFound)

		views, err = s.ListMessages(ctx)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, second.ID, views[0].ID)
	})

	t.Run("message_for_unknown_sender", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CreateMessage(ctx, 12345, "ghost")
		assert.ErrorIs(t, err, store.ErrForeignKey)

		views, err := s.ListMessages(ctx)
		require.NoError(t, err)
		assert.Empty(t, views)
	})
}

func TestSQLiteResetAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := store.NewSQLite(ctx, path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	u, err := s.CreateUser(ctx, "a@test.com", "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, s.UpdateUserOnline(ctx, u.ID, true))
	// No teardown ran: the flag survives the close.
	s.Close()

	s, err = store.NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	online, err := s.ListOnlineUsers(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)

	n, err := s.ResetOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	online, err = s.ListOnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)
}
