package authflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis as the backing store, for
// deployments with more than one instance behind a load balancer (the
// callback may land on a different instance than the redirect).
// Requests are stored as JSON under key "authflow:<state>" with TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-based pending request store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authflow:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(state string) string {
	return s.prefix + state
}

func (s *RedisStore) Put(ctx context.Context, p *PendingRequest) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	exp := time.Until(p.ExpiresAt)
	if exp <= 0 {
		// ensure a minimal TTL so Redis won't store expired requests
		exp = time.Second
	}
	return s.client.Set(ctx, s.key(p.State), b, exp).Err()
}

func (s *RedisStore) Take(ctx context.Context, state string) (*PendingRequest, error) {
	b, err := s.client.Get(ctx, s.key(state)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	_ = s.client.Del(ctx, s.key(state)).Err()
	var p PendingRequest
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if p.Expired() {
		return nil, nil
	}
	return &p, nil
}
