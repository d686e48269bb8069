package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache guarda os ids de eventos de webhook já processados.
// É só um atalho: os guards de status no store continuam sendo a garantia.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(eventID string) string { return "webhook:event:" + eventID }

// Seen indica se o evento já foi processado com sucesso.
func (r *RedisCache) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.Client.Exists(ctx, key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remember marca o evento como processado; first=false se já estava marcado.
func (r *RedisCache) Remember(ctx context.Context, eventID string) (first bool, err error) {
	return r.Client.SetNX(ctx, key(eventID), time.Now().UTC().Format(time.RFC3339), r.TTL).Result()
}
