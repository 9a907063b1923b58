package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileStore implements app.ProfileStore on Redis, namespacing every key
// under one fingerprint so profiles never collide.
type ProfileStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewProfileStore builds a store scoped to one fingerprint. A zero ttl keeps
// keys forever, matching the browser's local storage semantics.
func NewProfileStore(client *redis.Client, fingerprint string, ttl time.Duration) *ProfileStore {
	return &ProfileStore{
		client: client,
		prefix: "profile:" + fingerprint + ":",
		ttl:    ttl,
	}
}

func (s *ProfileStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *ProfileStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *ProfileStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
