package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer reserves waiting-list entries with SET NX so concurrent matcher runs
// cannot dispatch the same entry twice.
type Claimer struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewClaimer creates a claimer whose claims expire after ttl.
func NewClaimer(rdb *redis.Client, ttl time.Duration) *Claimer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Claimer{redis: rdb, ttl: ttl}
}

func claimKey(entryID int64) string {
	return fmt.Sprintf("%swaitlist:claim:%d", keyPrefix, entryID)
}

// Claim reports whether this caller now holds the entry.
func (c *Claimer) Claim(ctx context.Context, entryID int64) (bool, error) {
	ok, err := c.redis.SetNX(ctx, claimKey(entryID), time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim entry %d: %w", entryID, err)
	}
	return ok, nil
}

// Release gives the entry back so a later run may retry it.
func (c *Claimer) Release(ctx context.Context, entryID int64) error {
	if err := c.redis.Del(ctx, claimKey(entryID)).Err(); err != nil {
		return fmt.Errorf("release entry %d: %w", entryID, err)
	}
	return nil
}
