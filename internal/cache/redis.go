package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client    *redis.Client
	itemsTTL  time.Duration
	statusTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, itemsTTL, statusTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		itemsTTL,
		statusTTL,
	)
}

func NewRedisCacheWithClient(client *redis.Client, itemsTTL, statusTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, itemsTTL: itemsTTL, statusTTL: statusTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetItem returns nil, nil on a miss.
func (c *RedisCache) GetItem(ctx context.Context, id string) (*domain.ItemRecord, error) {
	data, err := c.client.Get(ctx, itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var item domain.ItemRecord
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *RedisCache) SetItem(ctx context.Context, item *domain.ItemRecord) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, itemKey(item.ID), payload, c.itemsTTL).Err()
}

// GetPaymentStatus returns nil, nil when nothing resolved the payment yet.
func (c *RedisCache) GetPaymentStatus(ctx context.Context, checkoutRequestID string) (*domain.PaymentStatusSnapshot, error) {
	data, err := c.client.Get(ctx, paymentStatusKey(checkoutRequestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap domain.PaymentStatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) SetPaymentStatus(ctx context.Context, snap domain.PaymentStatusSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, paymentStatusKey(snap.CheckoutRequestID), payload, c.statusTTL).Err()
}

// AcquireInitiationLock stops a second STK prompt for the same phone and item
// while the first one is still waiting on the payer.
func (c *RedisCache) AcquireInitiationLock(ctx context.Context, phone, itemID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, initiationLockKey(phone, itemID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseInitiationLock(ctx context.Context, phone, itemID string) error {
	return c.client.Del(ctx, initiationLockKey(phone, itemID)).Err()
}

func itemKey(id string) string {
	return fmt.Sprintf("cache:item:%s", id)
}

func paymentStatusKey(checkoutRequestID string) string {
	return fmt.Sprintf("cache:payment:%s", checkoutRequestID)
}

func initiationLockKey(phone, itemID string) string {
	return fmt.Sprintf("lock:stk:%s:item:%s", phone, itemID)
}
