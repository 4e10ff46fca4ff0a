package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/models"

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

type countingCatalog struct {
	mu       sync.Mutex
	calls    atomic.Int32
	products map[string]models.Product
}

func (c *countingCatalog) ProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *countingCatalog) setPrice(id, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Price = decimal.RequireFromString(price)
	c.products[id] = p
}

func newCatalog() *countingCatalog {
	return &countingCatalog{products: map[string]models.Product{
		"p1": {ID: "p1", Name: "Mug", Price: decimal.RequireFromString("10")},
		"p2": {ID: "p2", Name: "Tee", Price: decimal.RequireFromString("15")},
	}}
}

func TestProductCacheReadThrough(t *testing.T) {
	_, client := setupTestRedis(t)
	source := newCatalog()
	pc := NewProductCache(client, source, time.Minute)
	ctx := context.Background()

	products, err := pc.ProductsByIDs(ctx, []string{"p1", "p2", "unknown"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int32(1), source.calls.Load())

	products, err = pc.ProductsByIDs(ctx, []string{"p2", "p1"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
	assert.Equal(t, int32(1), source.calls.Load(), "second read is served from redis")
}

func TestProductCacheExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	source := newCatalog()
	pc := NewProductCache(client, source, time.Minute)
	ctx := context.Background()

	_, err := pc.ProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)

	source.setPrice("p1", "12")
	products, err := pc.ProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("10")), "stale until expiry")

	mr.FastForward(2 * time.Minute)
	products, err = pc.ProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12")))
}

func TestProductCacheFallsBackWhenRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	source := newCatalog()
	pc := NewProductCache(client, source, time.Minute)

	mr.Close()
	products, err := pc.ProductsByIDs(context.Background(), []string{"p1"})
	require.NoError(t, err)
	require.Len(t, products, 1)
}

type gatedCatalog struct {
	*countingCatalog
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedCatalog) ProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.countingCatalog.ProductsByIDs(ctx, ids)
}

func TestProductCacheSharedFetchOutlivesFirstCaller(t *testing.T) {
	_, client := setupTestRedis(t)
	source := &gatedCatalog{countingCatalog: newCatalog(), started: make(chan struct{}), release: make(chan struct{})}
	pc := NewProductCache(client, source, time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := pc.ProductsByIDs(firstCtx, []string{"p1"})
		firstErr <- err
	}()
	<-source.started

	type result struct {
		products []models.Product
		err      error
	}
	second := make(chan result, 1)
	go func() {
		products, err := pc.ProductsByIDs(context.Background(), []string{"p1"})
		second <- result{products, err}
	}()

	// le second client rejoint la lecture en cours, puis le premier abandonne
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(source.release)
	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.products, 1)
	assert.Equal(t, "p1", res.products[0].ID)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestResetTokensAreSingleUse(t *testing.T) {
	mr, client := setupTestRedis(t)
	tokens := NewResetTokens(client)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, mr.Exists("reset_token:"+token))

	email, err := tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestResetTokensExpire(t *testing.T) {
	mr, client := setupTestRedis(t)
	tokens := NewResetTokens(client)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	mr.FastForward(ResetTokenTTL + time.Second)

	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestLimiterCooldown(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewLimiter(client, "login", 2, 15*time.Minute)
	ctx := context.Background()

	wait, err := limiter.Check(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, wait)

	remaining, err := limiter.Hit(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	_, err = limiter.Hit(ctx, "a@example.com")
	require.NoError(t, err)

	wait, err = limiter.Check(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, wait)
	assert.True(t, mr.Exists("login_cooldown:a@example.com"))

	require.NoError(t, limiter.Reset(ctx, "a@example.com"))
	wait, err = limiter.Check(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, wait)
}
