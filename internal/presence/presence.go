package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:online:"

// Store mirrors the in-process presence flag into redis with a TTL, so a
// crashed process cannot leave users pinned online. The websocket layer is
// the only writer; other services read the keys directly.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) SetOnline(ctx context.Context, userID string, online bool) error {
	key := keyPrefix + userID
	if !online {
		return s.rdb.Del(ctx, key).Err()
	}
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}

// Refresh extends the TTL for users with long-lived connections. Called from
// the connection heartbeat.
func (s *Store) Refresh(ctx context.Context, userID string) error {
	return s.rdb.Expire(ctx, keyPrefix+userID, s.ttl).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
