package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultSessionKey = "pm_user"
	claimKeyPrefix    = "accepted:"
)

// RedisAdapter keeps the session slot and the per-item acceptance claims.
type RedisAdapter struct {
	client     *redis.Client
	sessionKey string
	claimTTL   time.Duration
}

type RedisOption func(*RedisAdapter)

func WithSessionKey(key string) RedisOption {
	return func(r *RedisAdapter) {
		if key != "" {
			r.sessionKey = key
		}
	}
}

// WithClaimTTL expires acceptance claims after ttl. Zero keeps them forever.
func WithClaimTTL(ttl time.Duration) RedisOption {
	return func(r *RedisAdapter) { r.claimTTL = ttl }
}

func NewRedisAdapter(client *redis.Client, opts ...RedisOption) *RedisAdapter {
	r := &RedisAdapter{client: client, sessionKey: DefaultSessionKey}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisAdapter) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.sessionKey, data, 0).Err()
}

func (r *RedisAdapter) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisAdapter) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.sessionKey).Err()
}

// Claim sets the acceptance marker for itemID. It reports false when another
// process set it first.
func (r *RedisAdapter) Claim(ctx context.Context, itemID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimKeyPrefix+itemID, 1, r.claimTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, itemID string) error {
	return r.client.Del(ctx, claimKeyPrefix+itemID).Err()
}
