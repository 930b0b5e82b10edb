package md

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "signalbot:bars:"

// RedisStore keeps downloaded series in redis so repeated runs within the TTL
// skip the market data API.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, key Key) (Series, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Series{}, false, nil
	}
	if err != nil {
		return Series{}, false, err
	}
	var series Series
	if err := json.Unmarshal(data, &series); err != nil {
		return Series{}, false, err
	}
	return series, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key Key, series Series) error {
	data, err := json.Marshal(series)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+key.String(), data, r.ttl).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
