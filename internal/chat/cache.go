package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const summaryKeyPrefix = "chat:summary:"

// RedisSummaryCache keeps the per-user sidebar projection in redis so fanout
// after a burst of messages does not hammer the message store. Every failure
// degrades to a recompute.
type RedisSummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisSummaryCache) Get(ctx context.Context, userID string) ([]ConversationSummary, bool) {
	raw, err := c.rdb.Get(ctx, summaryKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warnw("summary cache get", "user_id", userID, "err", err)
		}
		return nil, false
	}
	var out []ConversationSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warnw("summary cache decode", "user_id", userID, "err", err)
		return nil, false
	}
	return out, true
}

func (c *RedisSummaryCache) Set(ctx context.Context, userID string, s []ConversationSummary) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, summaryKeyPrefix+userID, raw, c.ttl).Err(); err != nil {
		c.log.Warnw("summary cache set", "user_id", userID, "err", err)
	}
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, summaryKeyPrefix+userID).Err(); err != nil {
		c.log.Warnw("summary cache invalidate", "user_id", userID, "err", err)
	}
}
