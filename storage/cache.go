package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"roadmap-planner/board"
)

type backend interface {
	LoadBoard(ctx context.Context, roadmapID string) (board.Board, error)
	Persist(ctx context.Context, roadmapID string, m board.Mutation) error
	DeleteRoadmap(ctx context.Context, id string) error
}

// Cache wraps a Storage instance with a Redis read-through cache for boards.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

// LoadBoard serves the board from Redis when present, otherwise from the
// backing storage, caching the result.
func (c *Cache) LoadBoard(ctx context.Context, roadmapID string) (board.Board, error) {
	if b, ok := c.loadBoardFromCache(ctx, roadmapID); ok {
		return b, nil
	}
	return c.RefreshBoard(ctx, roadmapID)
}

// RefreshBoard reloads the board from the backing storage and replaces the
// cached copy.
func (c *Cache) RefreshBoard(ctx context.Context, roadmapID string) (board.Board, error) {
	b, err := c.base.LoadBoard(ctx, roadmapID)
	if err != nil {
		return board.Board{}, err
	}
	c.storeBoard(ctx, roadmapID, b)
	return b, nil
}

func (c *Cache) Persist(ctx context.Context, roadmapID string, m board.Mutation) error {
	if err := c.base.Persist(ctx, roadmapID, m); err != nil {
		c.Evict(ctx, roadmapID)
		return err
	}
	c.storeBoard(ctx, roadmapID, m.After)
	return nil
}

func (c *Cache) DeleteRoadmap(ctx context.Context, id string) error {
	if err := c.base.DeleteRoadmap(ctx, id); err != nil {
		return err
	}
	c.Evict(ctx, id)
	return nil
}

// Evict drops the cached board of a roadmap.
func (c *Cache) Evict(ctx context.Context, roadmapID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey(roadmapID)).Err()
}

func (c *Cache) loadBoardFromCache(ctx context.Context, roadmapID string) (board.Board, bool) {
	if c.redis == nil {
		return board.Board{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(roadmapID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(roadmapID)).Err()
		}
		return board.Board{}, false
	}
	var b board.Board
	if err := sonic.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(roadmapID)).Err()
		return board.Board{}, false
	}
	if err := b.Validate(); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(roadmapID)).Err()
		return board.Board{}, false
	}
	return b, true
}

func (c *Cache) storeBoard(ctx context.Context, roadmapID string, b board.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(b)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(roadmapID), data, c.ttl).Err()
}

func boardCacheKey(roadmapID string) string {
	return "board:" + roadmapID
}
