package geo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisIndex implements Index using Redis GEO commands.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: client, key: key}
}

// NewRedisClient dials addr and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}

func (r *RedisIndex) Upsert(ctx context.Context, id string, p Point) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: p.Lng, Latitude: p.Lat, Name: id}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", id, err)
	}
	return nil
}

func (r *RedisIndex) Nearby(ctx context.Context, p Point, radiusKm float64, limit int) ([]string, error) {
	q := &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}
	ids, err := r.client.GeoSearch(ctx, r.key, q).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}
	return ids, nil
}
