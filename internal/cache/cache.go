// cache — опциональный Redis-кэш принципалов: публичных профилей
// пользователей, которых SessionGuard подгружает на каждый запрос.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/shop-auth/internal/models"
)

// PrincipalCache — минимальный контракт кэша принципалов.
type PrincipalCache interface {
	// Get возвращает профиль и признак его наличия в кэше.
	Get(ctx context.Context, id uuid.UUID) (*models.PublicUser, bool, error)
	// Set сохраняет профиль с TTL.
	Set(ctx context.Context, u *models.PublicUser, ttl time.Duration) error
	// Delete удаляет профиль (например, при выходе).
	Delete(ctx context.Context, id uuid.UUID) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "shop:principal:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (PrincipalCache, error) {
	if prefix == "" {
		prefix = "shop:principal:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(id uuid.UUID) string { return c.prefix + id.String() }

// Храним как Redis Hash; время — RFC3339Nano в UTC.
func (c *redisCache) Get(ctx context.Context, id uuid.UUID) (*models.PublicUser, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	created, err := parseTime(m["created"])
	if err != nil {
		return nil, false, err
	}

	updated, err := parseTime(m["updated"])
	if err != nil {
		return nil, false, err
	}

	return &models.PublicUser{
		ID:         id,
		Username:   m["username"],
		Email:      m["email"],
		FullName:   m["full_name"],
		Avatar:     m["avatar"],
		CoverImage: m["cover"],
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, u *models.PublicUser, ttl time.Duration) error {
	kv := map[string]string{
		"username":  u.Username,
		"email":     u.Email,
		"full_name": u.FullName,
		"avatar":    u.Avatar,
		"cover":     u.CoverImage,
		"created":   u.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated":   u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(u.ID), kv)
	pipe.Expire(ctx, c.key(u.ID), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(id)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
