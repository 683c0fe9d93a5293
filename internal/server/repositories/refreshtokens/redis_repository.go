package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rt:"

// ExistsFunc reports whether a user with the given id exists.
type ExistsFunc func(ctx context.Context, userID string) (bool, error)

// RedisRepository keeps one key per user holding the live refresh token.
// Keys expire together with the token they hold.
type RedisRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	exists ExistsFunc
}

func NewRedisRepository(client redis.UniversalClient, ttl time.Duration, exists ExistsFunc) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl, exists: exists}
}

func (r *RedisRepository) key(userID string) string {
	return keyPrefix + userID
}

func (r *RedisRepository) Set(ctx context.Context, userID, token string) error {
	if r.exists != nil {
		ok, err := r.exists(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorNotFound
		}
	}

	if err := r.client.Set(ctx, r.key(userID), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, userID string) (string, error) {
	token, err := r.client.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis error: %w", err)
	}
	return token, nil
}

func (r *RedisRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
