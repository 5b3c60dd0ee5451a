package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/models"
)

// RedisCartRepository keeps carts as JSON strings in Redis.
type RedisCartRepository struct {
	client redis.Cmdable
}

func NewRedisCartRepository(client redis.Cmdable) *RedisCartRepository {
	return &RedisCartRepository{client: client}
}

func cartKey(id string) string {
	return fmt.Sprintf(KeyCart, id)
}

func (r *RedisCartRepository) Get(ctx context.Context, id string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart %s: %w", id, err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", id, err)
	}
	return &cart, nil
}

func (r *RedisCartRepository) Set(ctx context.Context, cart *models.Cart, ttl time.Duration) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", cart.ID, err)
	}
	if err := r.client.Set(ctx, cartKey(cart.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart %s: %w", cart.ID, err)
	}
	return nil
}

func (r *RedisCartRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, cartKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cart %s: %w", id, err)
	}
	return n > 0, nil
}
