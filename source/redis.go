package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/always-cache/quotes"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key the dataset is stored under.
const DefaultRedisKey = "quotes:set"

// RedisStore keeps the whole dataset as one JSON array under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		client: client,
		key:    key,
	}
}

func (s *RedisStore) Load(ctx context.Context) (quotes.QuoteSet, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, quotes.NewLoadError(KindRedis, "get", fmt.Errorf("key %q: %w", s.key, quotes.ErrEmptyQuoteSet))
	}
	if err != nil {
		return nil, quotes.NewLoadError(KindRedis, "get", err)
	}
	set, err := quotes.DecodeQuoteSet(data)
	if err != nil {
		return nil, quotes.NewLoadError(KindRedis, "decode", err)
	}
	return set, nil
}

// Put replaces the stored dataset. The key does not expire.
func (s *RedisStore) Put(ctx context.Context, set quotes.QuoteSet) error {
	if len(set) == 0 {
		return quotes.NewLoadError(KindRedis, "set", quotes.ErrEmptyQuoteSet)
	}
	data, err := json.Marshal(set)
	if err != nil {
		return quotes.NewLoadError(KindRedis, "set", err)
	}
	return quotes.NewLoadError(KindRedis, "set", s.client.Set(ctx, s.key, data, 0).Err())
}

func (s *RedisStore) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
