package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

// RedisMirror keeps the online set in a Redis set.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror connects to redisURL and verifies it with a ping.
func NewRedisMirror(ctx context.Context, redisURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("internal/presence: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("internal/presence: redis ping failed: %w", err)
	}

	return &RedisMirror{client: client}, nil
}

// Reset empties the set. Called at startup, when nobody can be connected.
func (m *RedisMirror) Reset(ctx context.Context) error {
	return m.client.Del(ctx, onlineKey).Err()
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID int64, online bool) error {
	member := strconv.FormatInt(userID, 10)
	if online {
		return m.client.SAdd(ctx, onlineKey, member).Err()
	}
	return m.client.SRem(ctx, onlineKey, member).Err()
}

func (m *RedisMirror) Online(ctx context.Context) ([]int64, error) {
	members, err := m.client.SMembers(ctx, onlineKey).Result()
	if err != nil {
		return nil, fmt.Errorf("internal/presence: smembers: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, s := range members {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
