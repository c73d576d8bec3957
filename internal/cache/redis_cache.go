package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ StatusCache = (*RedisCache)(nil)

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type statusValue struct {
	EventID   string               `json:"eventId"`
	Channel   model.Channel        `json:"channel"`
	Status    model.Status         `json:"status"`
	Answered  model.Optional[bool] `json:"answered"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func statusKey(providerMessageID string) string {
	return fmt.Sprintf("msg:%s", providerMessageID)
}

func (c *RedisCache) StoreStatus(ctx context.Context, rec model.MessageRecord) error {
	val := statusValue{
		EventID:   rec.EventID,
		Channel:   rec.Channel,
		Status:    rec.Status,
		Answered:  rec.Answered,
		UpdatedAt: rec.UpdatedAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, statusKey(rec.ProviderMessageID), b, c.ttl).Err()
}
