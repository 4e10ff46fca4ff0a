package shopper

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/backend/memory"
	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/handlers"
	"storefront/internal/identity"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/notifier"
	"storefront/internal/order"
	"storefront/internal/pricing"
	"storefront/internal/routes"
	"storefront/internal/session"
	"storefront/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	url string
	db  string
	mem *memory.Backend
}

// setupStorefront démarre une boutique complète (backend mémoire, miniredis,
// canal checkout en mode auto).
func setupStorefront(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens := utils.NewTokens("test-secret", time.Hour)
	mem := memory.New(tokens)
	mem.Seed(
		models.Product{ID: "mug", Name: "Mug", Price: decimal.RequireFromString("12.00")},
		models.Product{ID: "chair", Name: "Chair", Price: decimal.RequireFromString("89.90")},
	)

	cookies := session.NewCookieStore("session-secret-session-secret-32", false)
	issuer := session.NewIssuer(cookies)
	bus := notifier.NewRedisBus(rdb)
	hub := notifier.NewHub(bus, tokens, nil)

	h := &handlers.Handler{
		Accounts:    mem,
		Orders:      mem,
		Prices:      pricing.NewBuilder(mem, nil),
		Carts:       cart.NewMemoryStore(),
		Reconciler:  order.NewReconciler(mem, mem, identity.NewResolver(mem), notifier.NewAutoCompleter(bus, "/orders/")),
		Sessions:    issuer,
		Visitors:    session.NewVisitors(cookies),
		ResetTokens: cache.NewResetTokens(rdb),
		Mailer:      utils.LogMailer{},
		Publisher:   bus,

		CheckoutRedirectBase: "/orders/",
	}

	r := gin.New()
	routes.RegisterRoutes(r, h, issuer, mem, middleware.NewRateLimits(rdb), routes.Options{Hub: hub})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})

	return &harness{url: srv.URL, db: filepath.Join(t.TempDir(), "shopper.db"), mem: mem}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", h.url, "--db", h.db}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (h *harness) ledger(t *testing.T) *cart.Ledger {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, h.db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	l, err := cart.Open(ctx, store.Carts(), ledgerKey)
	require.NoError(t, err)
	return l
}

func (h *harness) cookie(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, h.db)
	require.NoError(t, err)
	defer store.Close()
	v, err := store.SessionCookie(ctx)
	require.NoError(t, err)
	return v
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"cart", "add"}, {"cart", "remove"}, {"cart", "show"}, {"cart", "clear"}, {"checkout"}, {"login"}, {"logout"}, {"watch"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	checkout, _, err := cmd.Find([]string{"checkout"})
	require.NoError(t, err)
	wait := checkout.Flags().Lookup("wait")
	require.NotNil(t, wait)
	assert.Equal(t, defaultCheckoutWait.String(), wait.DefValue)
}

func TestCartCommands(t *testing.T) {
	h := setupStorefront(t)

	out, err := h.run(t, "cart", "add", "mug", "mug", "chair")
	require.NoError(t, err)
	assert.Contains(t, out, "3 item(s), estimated total 113.90")

	h.mem.SetPrice("mug", decimal.RequireFromString("99"))
	out, err = h.run(t, "cart", "remove", "mug")
	require.NoError(t, err)
	assert.Contains(t, out, "2 item(s), estimated total 101.90")

	out, err = h.run(t, "cart", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty")
}

func TestCartAddUnknownProductLeavesCart(t *testing.T) {
	h := setupStorefront(t)

	_, err := h.run(t, "cart", "add", "mug", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost"`)
	assert.True(t, h.ledger(t).Empty())
}

func TestGuestCheckoutClearsCartOnConfirmation(t *testing.T) {
	h := setupStorefront(t)
	_, err := h.run(t, "cart", "add", "mug", "mug")
	require.NoError(t, err)

	out, err := h.run(t, "checkout", "--email", "guest@example.com", "--wait", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "placed")
	assert.Contains(t, out, "Checkout complete, cart cleared: /orders/")

	assert.True(t, h.ledger(t).Empty())
	assert.NotEmpty(t, h.cookie(t))

	exists, err := h.mem.EmailExists(context.Background(), "guest@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCheckoutWithoutEmailIsRejected(t *testing.T) {
	h := setupStorefront(t)
	_, err := h.run(t, "cart", "add", "chair")
	require.NoError(t, err)

	out, err := h.run(t, "checkout", "--wait", "0")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, out, "email: Required")
	assert.Equal(t, 1, h.ledger(t).Quantity("chair"))
}

func TestLoggedInCheckoutKeepsCartWithoutWaiting(t *testing.T) {
	h := setupStorefront(t)
	_, err := h.mem.Register(context.Background(), backend.Registration{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	out, err := h.run(t, "login", "--email", "alice@example.com", "--password", "wrong-password")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, out, "password: Your password is not valid.")
	assert.Empty(t, h.cookie(t))

	_, err = h.run(t, "login", "--email", "alice@example.com", "--password", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, h.cookie(t))

	_, err = h.run(t, "cart", "add", "chair")
	require.NoError(t, err)
	out, err = h.run(t, "checkout", "--wait", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "placed")
	assert.Equal(t, 1, h.ledger(t).Quantity("chair"))

	_, err = h.run(t, "logout")
	require.NoError(t, err)
	assert.Empty(t, h.cookie(t))
}

func TestWatchWithoutSession(t *testing.T) {
	h := setupStorefront(t)
	_, err := h.run(t, "watch")
	assert.ErrorIs(t, err, notifier.ErrAnonymous)
}
