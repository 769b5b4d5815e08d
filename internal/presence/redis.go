// Package presence keeps the short-lived online flag and the live geo index.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	DefaultTTL = 30 * time.Second

	keyPrefix = "presence:"
	geoKey    = "geo:online"

	// Redis geo cells stop at the web-mercator latitude limit; the limit
	// itself encodes to the wrapped cell at the opposite pole.
	maxGeoLatitude     = 85.05112878
	clampedGeoLatitude = 85.05112877
)

type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// MarkOnline refreshes the presence flag and moves the user in the geo index.
func (s *RedisStore) MarkOnline(ctx context.Context, userID uuid.UUID, lon, lat float64) error {
	member := userID.String()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+member, "1", s.ttl)
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      member,
			Longitude: lon,
			Latitude:  clampLatitude(lat),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence.redis.mark_online: %w", err)
	}
	return nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+userID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("presence.redis.is_online: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func clampLatitude(lat float64) float64 {
	switch {
	case lat >= maxGeoLatitude:
		return clampedGeoLatitude
	case lat <= -maxGeoLatitude:
		return -clampedGeoLatitude
	default:
		return lat
	}
}
