package todo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// generationTTL bounds how long an idle per-id generation counter lives.
const generationTTL = 24 * time.Hour

var errStaleRead = errors.New("generation changed during read")

// CachedRepo puts a Redis read-through cache in front of Get.
//
// Every write bumps a per-id generation and drops the cached entry both
// before and after the wrapped write; a read only fills the cache if the
// generation it saw before reading the backend is still current. A failed
// read from Redis falls back to the backend, a failed invalidation fails
// the write.
type CachedRepo struct {
	TodoRepository
	rdb *redis.Client
	ttl time.Duration
}

func NewCachedRepo(next TodoRepository, rdb *redis.Client, ttl time.Duration) *CachedRepo {
	return &CachedRepo{TodoRepository: next, rdb: rdb, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("todo:%d", id)
}

func generationKey(id int64) string {
	return fmt.Sprintf("todo:%d:gen", id)
}

func (c *CachedRepo) Get(ctx context.Context, id int64) (*Todo, error) {
	key := cacheKey(id)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var t Todo
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
		slog.WarnContext(ctx, "dropping unreadable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}

	gen, genErr := c.generation(ctx, id)

	t, err := c.TodoRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		slog.WarnContext(ctx, "skipping cache fill", "key", key, "error", genErr)
		return t, nil
	}
	c.fill(ctx, id, gen, t)

	return t, nil
}

func (c *CachedRepo) Update(ctx context.Context, id int64, in UpdateTodoInput) (*Todo, error) {
	if err := c.invalidate(ctx, id); err != nil {
		return nil, err
	}

	t, err := c.TodoRepository.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}

	if err := c.invalidate(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *CachedRepo) Delete(ctx context.Context, id int64) error {
	if err := c.invalidate(ctx, id); err != nil {
		return err
	}

	if err := c.TodoRepository.Delete(ctx, id); err != nil {
		return err
	}

	return c.invalidate(ctx, id)
}

// Ping reports the wrapped repository; an unreachable cache only degrades reads.
func (c *CachedRepo) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		slog.WarnContext(ctx, "cache unreachable", "error", err)
	}
	return c.TodoRepository.Ping(ctx)
}

// generation returns the current write generation for id; 0 when unset.
func (c *CachedRepo) generation(ctx context.Context, id int64) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill caches t unless a write bumped the generation after gen was read.
func (c *CachedRepo) fill(ctx context.Context, id, gen int64, t *Todo) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}

	key, genKey := cacheKey(id), generationKey(id)

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleRead
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
	default:
		slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

// invalidate bumps the generation and drops the cached entry atomically.
func (c *CachedRepo) invalidate(ctx context.Context, id int64) error {
	key, genKey := cacheKey(id), generationKey(id)

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cache %s: %w", key, err)
	}
	return nil
}
