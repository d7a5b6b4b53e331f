package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/pkg/fault"
)

const (
	defaultKeyPrefix = "storefront:"

	// maxUpdateRetries bounds optimistic-lock retries when concurrent writers touch the same order.
	maxUpdateRetries = 5
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore is an OrderStore backed by Redis. Orders are stored as JSON strings; the POS order id and
// tracking number are secondary index keys, and a sorted set on creation time backs List.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient creates a store over an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Create implements OrderStore.
func (s *RedisStore) Create(ctx context.Context, order *domain.LocalOrder) error {
	key := s.orderKey(order.ID)
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encoding order %s: %w", order.ID, err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fault.ErrAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			s.writeIndexes(ctx, pipe, order)
			pipe.ZAdd(ctx, s.listKey(), redis.Z{
				Score:  float64(order.CreatedAt.UnixMilli()),
				Member: order.ID,
			})
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, fault.ErrAlreadyExists) {
		return fmt.Errorf("storing order %s: %w", order.ID, err)
	}
	return err
}

// Get implements OrderStore.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.LocalOrder, error) {
	data, err := s.client.Get(ctx, s.orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}
	return decodeOrder(data)
}

// GetByPOSOrderID implements OrderStore.
func (s *RedisStore) GetByPOSOrderID(ctx context.Context, posOrderID string) (*domain.LocalOrder, error) {
	return s.lookup(ctx, s.posKey(posOrderID), posOrderID)
}

// FindByTrackingNumber implements OrderStore.
func (s *RedisStore) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.LocalOrder, error) {
	return s.lookup(ctx, s.trackingKey(trackingNumber), trackingNumber)
}

// Update implements OrderStore. The order key is watched so a concurrent write aborts and retries the
// whole read-modify-write.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*domain.LocalOrder) error) (*domain.LocalOrder, error) {
	key := s.orderKey(id)
	var updated *domain.LocalOrder

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fault.ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := decodeOrder(data)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = id

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encoding order %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if current.POSOrderID != "" && current.POSOrderID != next.POSOrderID {
				pipe.Del(ctx, s.posKey(current.POSOrderID))
			}
			if tn := current.Shipping.TrackingNumber; tn != "" && tn != next.Shipping.TrackingNumber {
				pipe.Del(ctx, s.trackingKey(tn))
			}
			pipe.Set(ctx, key, encoded, 0)
			s.writeIndexes(ctx, pipe, next)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("updating order %s: too many concurrent writers", id)
}

// List implements OrderStore.
func (s *RedisStore) List(ctx context.Context) ([]*domain.LocalOrder, error) {
	ids, err := s.client.ZRevRange(ctx, s.listKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.LocalOrder{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.orderKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}

	orders := make([]*domain.LocalOrder, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		o, err := decodeOrder([]byte(str))
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	sortNewestFirst(orders)
	return orders, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) lookup(ctx context.Context, indexKey, value string) (*domain.LocalOrder, error) {
	if value == "" {
		return nil, fault.ErrNotFound
	}
	id, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", indexKey, err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) writeIndexes(ctx context.Context, pipe redis.Pipeliner, o *domain.LocalOrder) {
	if o.POSOrderID != "" {
		pipe.Set(ctx, s.posKey(o.POSOrderID), o.ID, 0)
	}
	if o.Shipping.TrackingNumber != "" {
		pipe.Set(ctx, s.trackingKey(o.Shipping.TrackingNumber), o.ID, 0)
	}
}

func (s *RedisStore) orderKey(id string) string   { return s.keyPrefix + "order:" + id }
func (s *RedisStore) posKey(guid string) string   { return s.keyPrefix + "order:pos:" + guid }
func (s *RedisStore) trackingKey(n string) string { return s.keyPrefix + "order:tracking:" + n }
func (s *RedisStore) listKey() string             { return s.keyPrefix + "orders" }

func decodeOrder(data []byte) (*domain.LocalOrder, error) {
	var o domain.LocalOrder
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	return &o, nil
}

var _ OrderStore = (*RedisStore)(nil)
