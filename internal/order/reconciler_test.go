package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/backend/memory"
	"storefront/internal/identity"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	backend.Catalog
	calls int
}

func (c *countingCatalog) ProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	c.calls++
	return c.Catalog.ProductsByIDs(ctx, ids)
}

type flakyOrders struct {
	*memory.Backend
	failLineAt int
	failOrder  bool
	lines      int
	inputs     []backend.OrderInput
}

func (f *flakyOrders) CreateLineItem(ctx context.Context, draftID string, in backend.LineItemInput) (models.LineItem, error) {
	f.lines++
	if f.lines == f.failLineAt {
		return models.LineItem{}, errors.New("backend unavailable")
	}
	return f.Backend.CreateLineItem(ctx, draftID, in)
}

func (f *flakyOrders) CreateOrder(ctx context.Context, in backend.OrderInput) (models.Order, error) {
	if f.failOrder {
		return models.Order{}, errors.New("backend unavailable")
	}
	f.inputs = append(f.inputs, in)
	return f.Backend.CreateOrder(ctx, in)
}

type MockCompletions struct {
	mock.Mock
}

func (m *MockCompletions) OrderPlaced(ctx context.Context, order models.Order) {
	m.Called(ctx, order)
}

type fixture struct {
	backend  *memory.Backend
	catalog  *countingCatalog
	orders   *flakyOrders
	rec      *Reconciler
	customer *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := memory.New(utils.NewTokens("secret", time.Hour))
	b.Seed(
		models.Product{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("10.00")},
		models.Product{ID: "p2", Name: "Tee", Price: decimal.RequireFromString("5.25")},
	)
	id, err := b.Register(context.Background(), backend.Registration{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	f := &fixture{
		backend:  b,
		catalog:  &countingCatalog{Catalog: b},
		orders:   &flakyOrders{Backend: b},
		customer: &id.User,
	}
	f.rec = NewReconciler(f.catalog, f.orders, identity.NewResolver(b), nil)
	f.rec.newDraftID = func() string { return "draft-1" }
	return f
}

func qty(n int) *int { return &n }

func loggedIn(lines ...ProductLine) Submission {
	return Submission{Status: "logged-in", Products: lines}
}

func TestSubmitUsesAuthoritativePrices(t *testing.T) {
	f := newFixture(t)
	// le prix a changé depuis l'ajout au panier
	f.backend.SetPrice("p1", decimal.RequireFromString("12.00"))

	res, errs, err := f.rec.Submit(context.Background(), loggedIn(
		ProductLine{DocumentID: "p1", Quantity: qty(2)},
		ProductLine{DocumentID: "p2", Quantity: qty(1)},
	), f.customer)
	require.NoError(t, err)
	require.True(t, errs.Empty())

	order := res.Order
	require.Len(t, order.Lines, 2)
	assert.True(t, order.Lines[0].Price.Equal(decimal.RequireFromString("24.00")))
	assert.True(t, order.Lines[1].Price.Equal(decimal.RequireFromString("5.25")))
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("29.25")))
	assert.Equal(t, f.customer.ID, order.UserID)
	assert.Equal(t, "alice@example.com", order.Email)
	assert.False(t, res.Purchaser.Created)
	assert.Equal(t, 1, f.catalog.calls)
}

func TestSubmitDuplicateProductsMakeSeparateLines(t *testing.T) {
	f := newFixture(t)

	res, _, err := f.rec.Submit(context.Background(), loggedIn(
		ProductLine{DocumentID: "p1", Quantity: qty(1)},
		ProductLine{DocumentID: "p1", Quantity: qty(3)},
	), f.customer)
	require.NoError(t, err)
	require.Len(t, res.Order.Lines, 2)
	assert.True(t, res.Order.TotalPrice.Equal(decimal.RequireFromString("40")))
	assert.Equal(t, 1, f.catalog.calls)
}

func TestSubmitHandsCreatedLinesToOrder(t *testing.T) {
	f := newFixture(t)

	res, _, err := f.rec.Submit(context.Background(), loggedIn(
		ProductLine{DocumentID: "p2", Quantity: qty(2)},
		ProductLine{DocumentID: "p1", Quantity: qty(1)},
	), f.customer)
	require.NoError(t, err)

	// l'en-tête reçoit les lignes déjà créées : rien n'est relu après l'écriture
	require.Len(t, f.orders.inputs, 1)
	in := f.orders.inputs[0]
	assert.Equal(t, "draft-1", in.DraftID)
	require.Len(t, in.Lines, 2)
	assert.Equal(t, "p2", in.Lines[0].ProductID)
	assert.Equal(t, "p1", in.Lines[1].ProductID)
	for i, line := range res.Order.Lines {
		assert.Equal(t, in.Lines[i].ID, line.ID)
	}
	assert.True(t, in.TotalPrice.Equal(decimal.RequireFromString("20.50")))
}

func TestSubmitLoggedInWithoutSession(t *testing.T) {
	f := newFixture(t)

	res, errs, err := f.rec.Submit(context.Background(), loggedIn(ProductLine{DocumentID: "p1", Quantity: qty(1)}), nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{identity.MsgLoginRequired}, errs["email"])
	assert.Zero(t, f.catalog.calls, "no catalog lookup before identity check")
}

func TestSubmitGuestWithExistingEmail(t *testing.T) {
	f := newFixture(t)

	_, errs, err := f.rec.Submit(context.Background(), Submission{
		Status:   "logged-out",
		Email:    "ALICE@example.com",
		Products: []ProductLine{{DocumentID: "p1", Quantity: qty(1)}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{identity.MsgEmailTaken}, errs["email"])
	assert.Zero(t, f.catalog.calls)
}

func TestSubmitGuestCreatesAccountAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, errs, err := f.rec.Submit(ctx, Submission{
		Status:   "logged-out",
		Email:    "guest@example.com",
		Products: []ProductLine{{DocumentID: "p2", Quantity: qty(4)}},
	}, nil)
	require.NoError(t, err)
	require.True(t, errs.Empty())

	assert.True(t, res.Purchaser.Created)
	assert.NotEmpty(t, res.Purchaser.Token)
	assert.Equal(t, "guest@example.com", res.Order.Email)
	assert.True(t, res.Order.TotalPrice.Equal(decimal.RequireFromString("21")))

	guest, err := f.backend.UserByEmail(ctx, "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, guest.ID, res.Order.UserID)
}

func TestSubmitUnknownProductIsFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.rec.Submit(ctx, Submission{
		Status:   "logged-out",
		Email:    "ghost@example.com",
		Products: []ProductLine{{DocumentID: "p1", Quantity: qty(1)}, {DocumentID: "gone", Quantity: qty(1)}},
	}, nil)
	assert.ErrorIs(t, err, ErrUnknownProduct)

	exists, err := f.backend.EmailExists(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists, "no guest account when the cart is rejected")
	assert.Empty(t, f.backend.DraftLines("draft-1"))
}

func TestSubmitDiscardsLinesWhenOrderCreationFails(t *testing.T) {
	f := newFixture(t)
	f.orders.failOrder = true

	_, _, err := f.rec.Submit(context.Background(), loggedIn(
		ProductLine{DocumentID: "p1", Quantity: qty(1)},
		ProductLine{DocumentID: "p2", Quantity: qty(1)},
	), f.customer)
	require.Error(t, err)
	assert.Empty(t, f.backend.DraftLines("draft-1"))

	orders, err := f.backend.OrdersByUser(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSubmitDiscardsLinesWhenALineFails(t *testing.T) {
	f := newFixture(t)
	f.orders.failLineAt = 2

	_, _, err := f.rec.Submit(context.Background(), loggedIn(
		ProductLine{DocumentID: "p1", Quantity: qty(1)},
		ProductLine{DocumentID: "p2", Quantity: qty(1)},
	), f.customer)
	require.Error(t, err)
	assert.Empty(t, f.backend.DraftLines("draft-1"))
}

func TestSubmitStructuralErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		sub   Submission
		field string
	}{
		{"unknown status", Submission{Status: "vip", Products: []ProductLine{{DocumentID: "p1", Quantity: qty(1)}}}, "status"},
		{"guest without email", Submission{Status: "logged-out", Products: []ProductLine{{DocumentID: "p1", Quantity: qty(1)}}}, "email"},
		{"guest with bad email", Submission{Status: "logged-out", Email: "nope", Products: []ProductLine{{DocumentID: "p1", Quantity: qty(1)}}}, "email"},
		{"missing quantity", loggedIn(ProductLine{DocumentID: "p1"}), "products[0].quantity"},
		{"missing id", loggedIn(ProductLine{Quantity: qty(1)}), "products[0].documentId"},
		{"empty cart", loggedIn(), "products"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, errs, err := f.rec.Submit(context.Background(), tt.sub, f.customer)
			require.NoError(t, err)
			assert.Nil(t, res)
			assert.Contains(t, errs, tt.field)
		})
	}
	assert.Zero(t, f.catalog.calls)
}

func TestSubmitAcceptsNonPositiveQuantities(t *testing.T) {
	f := newFixture(t)

	res, errs, err := f.rec.Submit(context.Background(), loggedIn(
		ProductLine{DocumentID: "p1", Quantity: qty(0)},
		ProductLine{DocumentID: "p2", Quantity: qty(-1)},
	), f.customer)
	require.NoError(t, err)
	require.True(t, errs.Empty())
	assert.True(t, res.Order.TotalPrice.Equal(decimal.RequireFromString("-5.25")))
}

func TestSubmitNotifiesCompletions(t *testing.T) {
	f := newFixture(t)
	completions := new(MockCompletions)
	completions.On("OrderPlaced", mock.Anything, mock.AnythingOfType("models.Order")).Return().Once()
	f.rec.completions = completions

	_, _, err := f.rec.Submit(context.Background(), loggedIn(ProductLine{DocumentID: "p1", Quantity: qty(1)}), f.customer)
	require.NoError(t, err)
	completions.AssertExpectations(t)
}

func TestSubmitDoesNotNotifyOnFailure(t *testing.T) {
	f := newFixture(t)
	f.orders.failOrder = true
	completions := new(MockCompletions)
	f.rec.completions = completions

	_, _, err := f.rec.Submit(context.Background(), loggedIn(ProductLine{DocumentID: "p1", Quantity: qty(1)}), f.customer)
	require.Error(t, err)
	completions.AssertNotCalled(t, "OrderPlaced", mock.Anything, mock.Anything)
}
