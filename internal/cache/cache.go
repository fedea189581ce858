package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/store"
)

// RecipeCache maps a normalized URL to a previously extracted recipe.
// Get returns nil, nil on a miss.
type RecipeCache interface {
	Get(ctx context.Context, key string) (*model.Recipe, error)
	Put(ctx context.Context, key string, r *model.Recipe) error
}

// StoreCache is the durable tier backed by the recipe store.
type StoreCache struct {
	store store.Store
}

// NewStoreCache wraps a store as a RecipeCache.
func NewStoreCache(s store.Store) *StoreCache {
	return &StoreCache{store: s}
}

func (c *StoreCache) Get(ctx context.Context, key string) (*model.Recipe, error) {
	return c.store.GetRecipe(ctx, key)
}

func (c *StoreCache) Put(ctx context.Context, key string, r *model.Recipe) error {
	stored, err := c.store.PutRecipe(ctx, key, r)
	if err != nil {
		return err
	}
	if !stored {
		zap.L().Debug("cache: record already present, keeping first write", zap.String("key", key))
	}
	return nil
}

// RedisCache is a TTL-bounded read-through tier.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache returns a Redis tier. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "recipe:"}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "cache: ping redis")
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.Recipe, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: redis get")
	}
	var r model.Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "cache: redis decode")
	}
	return &r, nil
}

// Put writes the recipe only if the key is not already set.
func (c *RedisCache) Put(ctx context.Context, key string, r *model.Recipe) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "cache: redis encode")
	}
	if err := c.client.SetNX(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: redis set")
	}
	return nil
}

// Layered reads the front tier first and falls back to the durable tier,
// backfilling the front on a durable hit. Front-tier failures are logged and
// never surface to callers.
type Layered struct {
	front RecipeCache
	back  RecipeCache
}

// NewLayered returns back alone when front is nil.
func NewLayered(front, back RecipeCache) RecipeCache {
	if front == nil {
		return back
	}
	return &Layered{front: front, back: back}
}

func (l *Layered) Get(ctx context.Context, key string) (*model.Recipe, error) {
	r, err := l.front.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: front tier read failed", zap.String("key", key), zap.Error(err))
	}
	if r != nil {
		return r, nil
	}

	r, err = l.back.Get(ctx, key)
	if err != nil || r == nil {
		return r, err
	}
	if err := l.front.Put(ctx, key, r); err != nil {
		zap.L().Warn("cache: front tier backfill failed", zap.String("key", key), zap.Error(err))
	}
	return r, nil
}

// Put writes the durable tier first; its error is the one returned.
func (l *Layered) Put(ctx context.Context, key string, r *model.Recipe) error {
	backErr := l.back.Put(ctx, key, r)
	if backErr != nil {
		return backErr
	}
	if err := l.front.Put(ctx, key, r); err != nil {
		zap.L().Warn("cache: front tier write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}
