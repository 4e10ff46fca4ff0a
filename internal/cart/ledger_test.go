package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/pricing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func record(id, price string) pricing.Record {
	return pricing.Record{ProductID: id, DisplayName: "Product " + id, UnitPrice: decimal.RequireFromString(price)}
}

func TestAddKeepsFirstCapturedPrice(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, NewMemoryStore(), "visitor")
	require.NoError(t, err)

	require.NoError(t, l.Add(ctx, record("p1", "10")))
	require.NoError(t, l.Add(ctx, record("p1", "12")))

	lines := l.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("10")))
}

func TestRemoveDecrementsThenDrops(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, NewMemoryStore(), "visitor")
	require.NoError(t, err)

	require.NoError(t, l.Add(ctx, record("p1", "10")))
	require.NoError(t, l.Add(ctx, record("p1", "10")))
	require.NoError(t, l.Add(ctx, record("p2", "4")))

	require.NoError(t, l.Remove(ctx, "p1"))
	assert.Equal(t, 1, l.Quantity("p1"))

	require.NoError(t, l.Remove(ctx, "p1"))
	assert.Equal(t, 0, l.Quantity("p1"))
	require.Len(t, l.Lines(), 1)

	require.NoError(t, l.Remove(ctx, "absent"))
	assert.Len(t, l.Lines(), 1)
}

func TestCalculatedPrice(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, NewMemoryStore(), "visitor")
	require.NoError(t, err)

	require.NoError(t, l.Add(ctx, record("p1", "10.50")))
	require.NoError(t, l.Add(ctx, record("p1", "10.50")))
	require.NoError(t, l.Add(ctx, record("p2", "0.10")))

	summary := l.CalculatedPrice()
	require.Len(t, summary.Products, 2)
	assert.True(t, summary.Products[0].TotalPrice.Equal(decimal.RequireFromString("21")))
	assert.True(t, summary.TotalPrice.Equal(decimal.RequireFromString("21.10")))
	assert.Equal(t, 3, summary.Count)
}

func TestCalculateEmpty(t *testing.T) {
	summary := Calculate(nil)
	assert.True(t, summary.TotalPrice.IsZero())
	assert.Empty(t, summary.Products)
}

func TestLedgerSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	l, err := Open(ctx, store, "visitor")
	require.NoError(t, err)
	require.NoError(t, l.Add(ctx, record("p1", "3")))

	reopened, err := Open(ctx, store, "visitor")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Quantity("p1"))

	require.NoError(t, reopened.Clear(ctx))
	again, err := Open(ctx, store, "visitor")
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

type failingStore struct{ *MemoryStore }

func (failingStore) Update(context.Context, string, Mutation) ([]models.CartLine, error) {
	return nil, errors.New("disk full")
}

func TestFailedSaveLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, failingStore{NewMemoryStore()}, "visitor")
	require.NoError(t, err)

	assert.Error(t, l.Add(ctx, record("p1", "3")))
	assert.True(t, l.Empty())
}

func TestRedisStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, time.Hour)

	_, err := store.Load(ctx, "v1")
	assert.ErrorIs(t, err, ErrNotFound)

	l, err := Open(ctx, store, "v1")
	require.NoError(t, err)
	require.NoError(t, l.Add(ctx, record("p1", "9.99")))

	assert.True(t, mr.Exists("cart:v1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:v1"))

	lines, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("9.99")))

	require.NoError(t, l.Remove(ctx, "p1"))
	assert.False(t, mr.Exists("cart:v1"), "an emptied cart is deleted")
}

func TestRedisStoreCorruptPayloadStartsEmpty(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:v2", "{not json"))

	l, err := Open(context.Background(), NewRedisStore(client, time.Hour), "v2")
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestOverlappingLedgersKeepEveryAdd(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, time.Hour)

	// deux requêtes du même visiteur ouvrent le panier avant d'écrire
	a, err := Open(ctx, store, "v3")
	require.NoError(t, err)
	b, err := Open(ctx, store, "v3")
	require.NoError(t, err)

	require.NoError(t, a.Add(ctx, record("p1", "5")))
	require.NoError(t, b.Add(ctx, record("p1", "5")))
	assert.Equal(t, 2, b.Quantity("p1"))

	require.NoError(t, a.Remove(ctx, "p1"))
	assert.Equal(t, 1, a.Quantity("p1"))

	reopened, err := Open(ctx, store, "v3")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Quantity("p1"))
}

func TestConcurrentAddsAreAllCounted(t *testing.T) {
	stores := map[string]Store{"memory": NewMemoryStore()}
	_, client := setupTestRedis(t)
	stores["redis"] = NewRedisStore(client, time.Hour)

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 8

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					l, err := Open(ctx, store, "busy")
					if err == nil {
						err = l.Add(ctx, record("p1", "1"))
					}
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			l, err := Open(ctx, store, "busy")
			require.NoError(t, err)
			assert.Equal(t, n, l.Quantity("p1"))
		})
	}
}
