// Package store is the persistence bridge: a Redis snapshot cache for
// fast room recovery, and a best-effort Postgres mirror of the durable
// room and player fields. Neither path is ever fatal to gameplay.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Seednode/deception/game"
)

// Cache stores full room snapshots under {prefix}:{room_id} with a TTL,
// plus a {prefix}:code:{room_code} index for recovery by room code.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache wraps an existing Redis client.
func NewCache(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) roomKey(roomID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, roomID)
}

func (c *Cache) codeKey(code string) string {
	return fmt.Sprintf("%s:code:%s", c.prefix, code)
}

// Save writes the snapshot and refreshes the code index.
func (c *Cache) Save(ctx context.Context, r *game.Room) error {
	data, err := r.Serialize()
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, c.roomKey(r.ID), data, c.ttl)
	pipe.Set(ctx, c.codeKey(r.Code), r.ID, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}

	return nil
}

// LoadByCode recovers a snapshot via the code index. A missing entry is
// not an error.
func (c *Cache) LoadByCode(ctx context.Context, code string) (*game.Room, error) {
	roomID, err := c.rdb.Get(ctx, c.codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache code lookup: %w", err)
	}

	data, err := c.rdb.Get(ctx, c.roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache snapshot read: %w", err)
	}

	return game.Deserialize(data)
}

// Delete removes the snapshot and code index.
func (c *Cache) Delete(ctx context.Context, r *game.Room) error {
	if err := c.rdb.Del(ctx, c.roomKey(r.ID), c.codeKey(r.Code)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}

	return nil
}
