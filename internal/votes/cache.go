package votes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TallyCache stores computed tallies keyed by target.
type TallyCache interface {
	Get(ctx context.Context, target Target) (Tally, bool, error)
	Set(ctx context.Context, target Target, tally Tally) error
	Invalidate(ctx context.Context, target Target) error
}

const tallyKeyPrefix = "votes:tally:"

// RedisTallyCache keeps each tally in a hash with up/down fields. Entries
// expire after ttl so a lost invalidation heals on its own.
type RedisTallyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisTallyCache(client redis.UniversalClient, ttl time.Duration) *RedisTallyCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisTallyCache{client: client, ttl: ttl}
}

func tallyKey(t Target) string {
	return tallyKeyPrefix + string(t.Kind) + ":" + strconv.Itoa(t.ID)
}

func (c *RedisTallyCache) Get(ctx context.Context, target Target) (Tally, bool, error) {
	vals, err := c.client.HGetAll(ctx, tallyKey(target)).Result()
	if err != nil {
		return Tally{}, false, err
	}
	if len(vals) == 0 {
		return Tally{}, false, nil
	}
	up, err := strconv.Atoi(vals["up"])
	if err != nil {
		return Tally{}, false, fmt.Errorf("decode cached upvotes: %w", err)
	}
	down, err := strconv.Atoi(vals["down"])
	if err != nil {
		return Tally{}, false, fmt.Errorf("decode cached downvotes: %w", err)
	}
	return newTally(up, down), true, nil
}

func (c *RedisTallyCache) Set(ctx context.Context, target Target, tally Tally) error {
	key := tallyKey(target)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "up", tally.Upvotes, "down", tally.Downvotes)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *RedisTallyCache) Invalidate(ctx context.Context, target Target) error {
	return c.client.Del(ctx, tallyKey(target)).Err()
}
