package scylla

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests d'intégration : SCYLLA_TEST_HOSTS=127.0.0.1 go test ./internal/backend/scylla
func setupTestScylla(t *testing.T) *Backend {
	t.Helper()
	hosts := os.Getenv("SCYLLA_TEST_HOSTS")
	if hosts == "" {
		t.Skip("SCYLLA_TEST_HOSTS non défini")
	}

	cluster := gocql.NewCluster(strings.Split(hosts, ",")...)
	cluster.Timeout = 10 * time.Second
	admin, err := cluster.CreateSession()
	require.NoError(t, err)
	defer admin.Close()

	keyspace := "storefront_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	require.NoError(t, admin.Query(`CREATE KEYSPACE `+keyspace+
		` WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`).Exec())
	t.Cleanup(func() {
		cleanup, err := cluster.CreateSession()
		if err == nil {
			_ = cleanup.Query("DROP KEYSPACE IF EXISTS " + keyspace).Exec()
			cleanup.Close()
		}
	})

	cluster.Keyspace = keyspace
	session, err := cluster.CreateSession()
	require.NoError(t, err)
	t.Cleanup(session.Close)

	b := New(session, utils.NewTokens("test-secret", time.Hour))
	require.NoError(t, b.Migrate(context.Background()))
	return b
}

func TestScyllaCatalog(t *testing.T) {
	b := setupTestScylla(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertProduct(ctx, models.Product{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("12.5")}))
	require.NoError(t, b.UpsertProduct(ctx, models.Product{ID: "p2", Name: "Tee", Price: decimal.RequireFromString("20")}))

	products, err := b.ProductsByIDs(ctx, []string{"p2", "missing", "p1", "p2"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("12.5")))
}

func TestScyllaRegisterIsExclusive(t *testing.T) {
	b := setupTestScylla(t)
	ctx := context.Background()

	id, err := b.Register(ctx, backend.Registration{Username: "eve", Email: "Eve@Example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = b.Register(ctx, backend.Registration{Username: "eve2", Email: "eve@example.com", Password: "password123"})
	assert.ErrorIs(t, err, backend.ErrEmailTaken)

	me, err := b.Me(ctx, id.Token)
	require.NoError(t, err)
	assert.Equal(t, "eve@example.com", me.Email)
}

func TestScyllaOrderFlow(t *testing.T) {
	b := setupTestScylla(t)
	ctx := context.Background()

	id, err := b.Register(ctx, backend.Registration{Username: "frank", Email: "frank@example.com", Password: "password123"})
	require.NoError(t, err)

	draft := uuid.NewString()
	line, err := b.CreateLineItem(ctx, draft, backend.LineItemInput{ProductID: "p1", Quantity: 3, Price: decimal.RequireFromString("0.30")})
	require.NoError(t, err)

	order, err := b.CreateOrder(ctx, backend.OrderInput{
		DraftID:    draft,
		UserID:     id.ID,
		Email:      id.Email,
		Lines:      []models.LineItem{line},
		TotalPrice: decimal.RequireFromString("0.30"),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.LineItem{line}, order.Lines)

	orders, err := b.OrdersByUser(ctx, id.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "0.3", orders[0].TotalPrice.String())

	require.NoError(t, b.SetOrderStatus(ctx, order.ID, models.OrderStatusCompleted))
	got, err := b.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "0.3", got.Lines[0].Price.String())
}

func TestMoney(t *testing.T) {
	d, err := money("0.10")
	require.NoError(t, err)
	assert.True(t, d.Add(decimal.RequireFromString("0.20")).Equal(decimal.RequireFromString("0.3")))

	_, err = money("")
	assert.Error(t, err)
}
