package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/repository"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
)

var created = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

func newOrder(id, posID string, at time.Time) *domain.LocalOrder {
	return &domain.LocalOrder{
		ID:          id,
		OrderNumber: "ORD-" + id,
		Items: []domain.LineItem{
			{ProductID: "latte", Name: "Latte", Price: decimal.RequireFromString("4.25"), Quantity: 1,
				Customizations: &domain.Customizations{Size: "large", Milk: "oat"}},
		},
		Customer:             domain.Customer{Email: "a@b.com", FirstName: "Ada"},
		PaymentMethod:        "CREDIT_CARD",
		POSOrderID:           posID,
		PaymentTransactionID: "tx-" + id,
		Status:               domain.StatusPlaced,
		EstimatedReadyTime:   at.Add(domain.PreparationWindow),
		CreatedAt:            at,
		UpdatedAt:            at,
	}
}

type storeFactory func(t *testing.T) repository.OrderStore

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) repository.OrderStore {
			return repository.NewMemoryStore()
		},
		"redis": func(t *testing.T) repository.OrderStore {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return repository.NewRedisStoreWithClient(client, "test:")
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, store repository.OrderStore)) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestOrderStore_CreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("o1", "guid-1", created)))

		got, err := store.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "guid-1", got.POSOrderID)
		assert.Equal(t, domain.StatusPlaced, got.Status)
		assert.True(t, got.CreatedAt.Equal(created))
		assert.Equal(t, "4.25", got.Items[0].Price.StringFixed(2))
		require.NotNil(t, got.Items[0].Customizations)
		assert.Equal(t, "oat", got.Items[0].Customizations.Milk)
	})
}

func TestOrderStore_CreateDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("o1", "", created)))

		err := store.Create(ctx, newOrder("o1", "", created))
		assert.True(t, errors.Is(err, fault.ErrAlreadyExists))
	})
}

func TestOrderStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		_, err := store.Get(context.Background(), "nope")
		assert.True(t, errors.Is(err, fault.ErrNotFound))
	})
}

func TestOrderStore_ReturnsCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		o := newOrder("o1", "", created)
		require.NoError(t, store.Create(ctx, o))

		o.Status = domain.StatusCancelled
		got, err := store.Get(ctx, "o1")
		require.NoError(t, err)
		got.Items[0].Customizations.Milk = "whole"

		again, err := store.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPlaced, again.Status)
		assert.Equal(t, "oat", again.Items[0].Customizations.Milk)
	})
}

func TestOrderStore_GetByPOSOrderID(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("o1", "guid-1", created)))
		require.NoError(t, store.Create(ctx, newOrder("o2", "", created)))

		got, err := store.GetByPOSOrderID(ctx, "guid-1")
		require.NoError(t, err)
		assert.Equal(t, "o1", got.ID)

		_, err = store.GetByPOSOrderID(ctx, "guid-missing")
		assert.True(t, errors.Is(err, fault.ErrNotFound))

		_, err = store.GetByPOSOrderID(ctx, "")
		assert.True(t, errors.Is(err, fault.ErrNotFound))
	})
}

func TestOrderStore_Update(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("o1", "guid-1", created)))

		updated, err := store.Update(ctx, "o1", func(o *domain.LocalOrder) error {
			o.Status = domain.StatusReady
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, updated.Status)

		got, err := store.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, got.Status)
	})
}

func TestOrderStore_UpdateAbortsOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("o1", "", created)))
		boom := errors.New("boom")

		_, err := store.Update(ctx, "o1", func(o *domain.LocalOrder) error {
			o.Status = domain.StatusCancelled
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPlaced, got.Status)
	})
}

func TestOrderStore_UpdateMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		_, err := store.Update(context.Background(), "nope", func(*domain.LocalOrder) error { return nil })
		assert.True(t, errors.Is(err, fault.ErrNotFound))
	})
}

func TestOrderStore_FindByTrackingNumber(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		o := newOrder("o1", "", created)
		o.ShippingAddress = &shipper.Address{Street1: "1 Main St", City: "Las Vegas", State: "NV", ZIP: "89134"}
		o.Shipping.LabelStatus = domain.LabelPending
		require.NoError(t, store.Create(ctx, o))

		_, err := store.FindByTrackingNumber(ctx, "9400100")
		assert.True(t, errors.Is(err, fault.ErrNotFound))

		_, err = store.Update(ctx, "o1", func(o *domain.LocalOrder) error {
			o.AttachLabel(&shipper.Label{TrackingNumber: "9400100", LabelImage: "aGVsbG8=", Format: "PDF"}, created)
			return nil
		})
		require.NoError(t, err)

		got, err := store.FindByTrackingNumber(ctx, "9400100")
		require.NoError(t, err)
		assert.Equal(t, "o1", got.ID)
		assert.Equal(t, "aGVsbG8=", got.Shipping.LabelImage)

		_, err = store.Update(ctx, "o1", func(o *domain.LocalOrder) error {
			o.AttachLabel(&shipper.Label{TrackingNumber: "9400200"}, created)
			return nil
		})
		require.NoError(t, err)

		_, err = store.FindByTrackingNumber(ctx, "9400100")
		assert.True(t, errors.Is(err, fault.ErrNotFound))
	})
}

func TestOrderStore_ListNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("old", "", created)))
		require.NoError(t, store.Create(ctx, newOrder("new", "", created.Add(2*time.Hour))))
		require.NoError(t, store.Create(ctx, newOrder("mid", "", created.Add(time.Hour))))

		orders, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, "new", orders[0].ID)
		assert.Equal(t, "mid", orders[1].ID)
		assert.Equal(t, "old", orders[2].ID)
	})
}

func TestOrderStore_ListEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		orders, err := store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func TestOrderStore_ConcurrentUpdates(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repository.OrderStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, newOrder("o1", "", created)))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Update(ctx, "o1", func(o *domain.LocalOrder) error {
					o.SpecialInstructions += fmt.Sprintf("%d", i)
					return nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := store.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Len(t, got.SpecialInstructions, 4)
	})
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := repository.NewRedisStore(context.Background(), repository.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestNewRedisStore_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := repository.NewRedisStore(context.Background(), repository.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Create(context.Background(), newOrder("o1", "guid-1", created)))
	assert.True(t, mr.Exists("storefront:order:o1"))
	assert.True(t, mr.Exists("storefront:order:pos:guid-1"))
}
