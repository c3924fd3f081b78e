// Package presence keeps each user's online flag in step with the
// connections bound to them.
package presence

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/metrics"
	"github.com/johndosdos/chatroom/internal/model"
)

// Store is the slice of store.Store the tracker writes through.
type Store interface {
	UpdateUserOnline(ctx context.Context, id int64, online bool) error
	ListOnlineUsers(ctx context.Context) ([]model.User, error)
}

// Mirror is an optional secondary copy of the online set.
type Mirror interface {
	SetOnline(ctx context.Context, userID int64, online bool) error
	Online(ctx context.Context) ([]int64, error)
}

type userRefs struct {
	mu   sync.Mutex
	refs int
	// held counts callers holding or waiting on mu. Guarded by Tracker.mu.
	held int
}

// Tracker writes online/offline transitions to the store. Acquire and
// Release count connections per user so the flag only flips on the first
// connect and the last disconnect.
type Tracker struct {
	store  Store
	mirror Mirror
	logger zerolog.Logger

	mu    sync.Mutex
	users map[int64]*userRefs
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMirror copies every transition into m.
func WithMirror(m Mirror) Option {
	return func(t *Tracker) { t.mirror = m }
}

// New returns a Tracker writing to s.
func New(s Store, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		logger: logger.With().Str("component", "presence").Logger(),
		users:  make(map[int64]*userRefs),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkOnline sets the user's flag to true. It fails with store.ErrNotFound
// for unknown ids.
func (t *Tracker) MarkOnline(ctx context.Context, userID int64) error {
	return t.set(ctx, userID, true)
}

// MarkOffline sets the user's flag to false.
func (t *Tracker) MarkOffline(ctx context.Context, userID int64) error {
	return t.set(ctx, userID, false)
}

// Acquire records a new connection for userID, marking the user online if
// it is their first. On error the count is left unchanged.
func (t *Tracker) Acquire(ctx context.Context, userID int64) error {
	u := t.lock(userID)
	defer t.unlock(userID, u)

	if u.refs == 0 {
		if err := t.MarkOnline(ctx, userID); err != nil {
			return err
		}
	}
	u.refs++

	return nil
}

// Release drops one connection for userID. When it was the last one the
// user is marked offline and last is true. Releasing a user with no
// connections is a no-op.
func (t *Tracker) Release(ctx context.Context, userID int64) (last bool, err error) {
	return t.ReleaseWith(ctx, userID, nil)
}

// ReleaseWith is Release, but when the last connection goes it also runs
// onLast before any other Acquire or Release for userID can proceed. onLast
// runs even if marking the user offline failed.
func (t *Tracker) ReleaseWith(ctx context.Context, userID int64, onLast func()) (last bool, err error) {
	u := t.lock(userID)
	defer t.unlock(userID, u)

	switch u.refs {
	case 0:
		return false, nil
	case 1:
		u.refs = 0
		err = t.MarkOffline(ctx, userID)
		if onLast != nil {
			onLast()
		}
		return true, err
	default:
		u.refs--
		return false, nil
	}
}

// Connections returns how many connections are held for userID.
func (t *Tracker) Connections(userID int64) int {
	t.mu.Lock()
	_, ok := t.users[userID]
	t.mu.Unlock()
	if !ok {
		return 0
	}

	u := t.lock(userID)
	defer t.unlock(userID, u)
	return u.refs
}

// Online lists the ids of online users, from the mirror when one is
// configured and reachable.
func (t *Tracker) Online(ctx context.Context) ([]int64, error) {
	if t.mirror != nil {
		ids, err := t.mirror.Online(ctx)
		if err == nil {
			return ids, nil
		}
		t.logger.Warn().Err(err).Msg("presence mirror unavailable; reading store")
	}

	users, err := t.store.ListOnlineUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("internal/presence: list online users: %w", err)
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// lock returns userID's entry with its mutex held, creating the entry on
// first use.
func (t *Tracker) lock(userID int64) *userRefs {
	t.mu.Lock()
	u, ok := t.users[userID]
	if !ok {
		u = &userRefs{}
		t.users[userID] = u
	}
	u.held++
	t.mu.Unlock()

	u.mu.Lock()
	return u
}

// unlock releases u and drops the entry once nobody holds it and it counts
// no connections, so ids that never connect do not accumulate.
func (t *Tracker) unlock(userID int64, u *userRefs) {
	u.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	u.held--
	if u.held == 0 && u.refs == 0 {
		delete(t.users, userID)
	}
}

// tracked reports how many users currently have an entry.
func (t *Tracker) tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}

func (t *Tracker) set(ctx context.Context, userID int64, online bool) error {
	if err := t.store.UpdateUserOnline(ctx, userID, online); err != nil {
		return fmt.Errorf("internal/presence: user %d online=%t: %w", userID, online, err)
	}

	state := "offline"
	if online {
		state = "online"
	}
	metrics.PresenceTransitions.WithLabelValues(state).Inc()

	if t.mirror != nil {
		if err := t.mirror.SetOnline(ctx, userID, online); err != nil {
			t.logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to mirror presence")
		}
	}

	t.logger.Debug().Int64("user_id", userID).Str("state", state).Msg("presence updated")
	return nil
}
