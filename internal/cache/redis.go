// Package cache keeps per-user to-do lists in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"todo-api/internal/domain"
)

const keyPrefix = "todos:user:"

// Redis caches list-mine results. Failures are logged and treated as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// Connect parses url, pings the server and returns a ready cache.
func Connect(ctx context.Context, url string, ttl time.Duration, logger logrus.FieldLogger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, ttl, logger), nil
}

func New(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *Redis {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Key returns the cache key for owner's list.
func Key(owner string) string {
	return keyPrefix + owner
}

func (r *Redis) Get(ctx context.Context, owner string) ([]domain.Todo, bool) {
	b, err := r.client.Get(ctx, Key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.WithError(err).Debug("redis get todos failed")
		return nil, false
	}

	var entries []entry
	if err := json.Unmarshal(b, &entries); err != nil {
		r.logger.WithError(err).Debug("redis unmarshal todos failed")
		return nil, false
	}

	todos := make([]domain.Todo, len(entries))
	for i := range entries {
		todos[i] = entries[i].toDomain()
	}
	return todos, true
}

func (r *Redis) Set(ctx context.Context, owner string, todos []domain.Todo) {
	entries := make([]entry, len(todos))
	for i := range todos {
		entries[i] = newEntry(todos[i])
	}
	b, err := json.Marshal(entries)
	if err != nil {
		r.logger.WithError(err).Debug("marshal todos for cache failed")
		return
	}
	if err := r.client.Set(ctx, Key(owner), b, r.ttl).Err(); err != nil {
		r.logger.WithError(err).Debug("redis set todos failed")
	}
}

func (r *Redis) Invalidate(ctx context.Context, owner string) {
	if err := r.client.Del(ctx, Key(owner)).Err(); err != nil {
		r.logger.WithError(err).Warn("redis invalidate todos failed")
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type entry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newEntry(t domain.Todo) entry {
	return entry{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Owner:       t.Owner,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (e entry) toDomain() domain.Todo {
	return domain.Todo{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Owner:       e.Owner,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
