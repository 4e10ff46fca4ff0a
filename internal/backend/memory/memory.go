// Package memory est un backend en mémoire pour le développement et les tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/backend"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Backend struct {
	mu       sync.RWMutex
	tokens   *utils.Tokens
	products map[string]models.Product
	users    map[string]models.User
	byEmail  map[string]string
	lines    map[string][]models.LineItem
	orders   map[string]models.Order
	now      func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

func New(tokens *utils.Tokens) *Backend {
	return &Backend{
		tokens:   tokens,
		products: make(map[string]models.Product),
		users:    make(map[string]models.User),
		byEmail:  make(map[string]string),
		lines:    make(map[string][]models.LineItem),
		orders:   make(map[string]models.Order),
		now:      time.Now,
	}
}

// Seed ajoute ou remplace des produits du catalogue.
func (b *Backend) Seed(products ...models.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range products {
		b.products[p.ID] = p
	}
}

// SetPrice modifie le prix d'un produit existant.
func (b *Backend) SetPrice(productID string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.products[productID]; ok {
		p.Price = price
		p.UpdatedAt = b.now()
		b.products[productID] = p
	}
}

func (b *Backend) ProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Product, 0, len(ids))
	for _, id := range backend.DedupeIDs(ids) {
		if p, ok := b.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Backend) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.byEmail[backend.NormalizeEmail(email)]
	return ok, nil
}

func (b *Backend) Register(ctx context.Context, reg backend.Registration) (models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return models.Identity{}, err
	}
	hash, err := utils.HashPassword(reg.Password)
	if err != nil {
		return models.Identity{}, err
	}

	key := backend.NormalizeEmail(reg.Email)
	b.mu.Lock()
	if _, taken := b.byEmail[key]; taken {
		b.mu.Unlock()
		return models.Identity{}, backend.ErrEmailTaken
	}
	now := b.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  reg.Username,
		Email:     key,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.users[user.ID] = user
	b.byEmail[key] = user.ID
	b.mu.Unlock()

	return b.identity(user)
}

func (b *Backend) Login(ctx context.Context, email, password string) (models.Identity, error) {
	user, err := b.UserByEmail(ctx, email)
	if err != nil {
		return models.Identity{}, err
	}
	b.mu.RLock()
	hash := b.users[user.ID].Password
	b.mu.RUnlock()

	ok, err := utils.VerifyPassword(password, hash)
	if err != nil || !ok {
		return models.Identity{}, backend.ErrInvalidCredentials
	}
	return b.identity(*user)
}

func (b *Backend) Me(ctx context.Context, token string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	userID, err := b.tokens.Verify(token)
	if err != nil {
		return nil, backend.ErrInvalidToken
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	user, ok := b.users[userID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return public(user), nil
}

func (b *Backend) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.byEmail[backend.NormalizeEmail(email)]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return public(b.users[id]), nil
}

func (b *Backend) SetPassword(ctx context.Context, userID, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[userID]
	if !ok {
		return backend.ErrNotFound
	}
	user.Password = hash
	user.UpdatedAt = b.now()
	b.users[userID] = user
	return nil
}

func (b *Backend) CreateLineItem(ctx context.Context, draftID string, in backend.LineItemInput) (models.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return models.LineItem{}, err
	}
	item := models.LineItem{
		ID:        uuid.NewString(),
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Price:     in.Price,
		CreatedAt: b.now(),
	}
	b.mu.Lock()
	b.lines[draftID] = append(b.lines[draftID], item)
	b.mu.Unlock()
	return item, nil
}

func (b *Backend) CreateOrder(ctx context.Context, in backend.OrderInput) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[in.UserID]; !ok {
		return models.Order{}, backend.ErrNotFound
	}
	byID := make(map[string]models.LineItem)
	for _, item := range b.lines[in.DraftID] {
		byID[item.ID] = item
	}
	lines := make([]models.LineItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		item, ok := byID[l.ID]
		if !ok {
			return models.Order{}, backend.ErrNotFound
		}
		lines = append(lines, item)
	}

	order := models.Order{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Email:      in.Email,
		Lines:      lines,
		TotalPrice: in.TotalPrice,
		Status:     models.OrderStatusPending,
		CreatedAt:  b.now(),
	}
	b.orders[order.ID] = order
	delete(b.lines, in.DraftID)
	return order, nil
}

func (b *Backend) DiscardDraft(ctx context.Context, draftID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lines, draftID)
	return nil
}

// DraftLines retourne les lignes orphelines d'un brouillon.
func (b *Backend) DraftLines(draftID string) []models.LineItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.LineItem(nil), b.lines[draftID]...)
}

func (b *Backend) Order(ctx context.Context, orderID string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[orderID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &order, nil
}

func (b *Backend) OrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []models.Order
	for _, o := range b.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *Backend) SetOrderStatus(ctx context.Context, orderID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[orderID]
	if !ok {
		return backend.ErrNotFound
	}
	order.Status = status
	b.orders[orderID] = order
	return nil
}

func (b *Backend) identity(user models.User) (models.Identity, error) {
	token, err := b.tokens.Generate(user)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{User: *public(user), Token: token}, nil
}

func public(user models.User) *models.User {
	user.Password = ""
	return &user
}
