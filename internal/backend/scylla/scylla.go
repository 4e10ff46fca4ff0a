// Package scylla implémente le backend sur ScyllaDB (gocql).
package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/backend"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Backend struct {
	session *gocql.Session
	tokens  *utils.Tokens
	now     func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

func New(session *gocql.Session, tokens *utils.Tokens) *Backend {
	return &Backend{session: session, tokens: tokens, now: time.Now}
}

// Migrate crée les tables si elles n'existent pas.
func (b *Backend) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if err := b.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("scylla: migration: %w", err)
		}
	}
	return nil
}

// ================== CATALOGUE ==================

func (b *Backend) ProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	ids = backend.DedupeIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	iter := b.session.Query(stmtProductsByIDs, ids).WithContext(ctx).Iter()
	byID := make(map[string]models.Product, len(ids))
	var (
		p     models.Product
		price string
		bad   error
	)
	for iter.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &price, &p.ImageURLs, &p.CreatedAt, &p.UpdatedAt) {
		if p.Price, bad = money(price); bad != nil {
			break
		}
		byID[p.ID] = p
		p = models.Product{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: products: %w", err)
	}
	if bad != nil {
		return nil, fmt.Errorf("scylla: product %s: %w", p.ID, bad)
	}

	out := make([]models.Product, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpsertProduct alimente le catalogue (seed, outils d'admin).
func (b *Backend) UpsertProduct(ctx context.Context, p models.Product) error {
	now := b.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return b.session.Query(stmtInsertProduct,
		p.ID, p.Name, p.Slug, p.Description, p.Price.String(), p.ImageURLs, p.CreatedAt, now,
	).WithContext(ctx).Exec()
}

// ================== COMPTES ==================

func (b *Backend) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := b.userIDByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, backend.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Register réserve l'email par une transaction légère (LWT) avant d'écrire
// le profil : deux inscriptions concurrentes ne peuvent pas aboutir toutes
// les deux.
func (b *Backend) Register(ctx context.Context, reg backend.Registration) (models.Identity, error) {
	hash, err := utils.HashPassword(reg.Password)
	if err != nil {
		return models.Identity{}, err
	}

	email := backend.NormalizeEmail(reg.Email)
	userID := gocql.TimeUUID()

	applied, err := b.session.Query(stmtReserveEmail, email, userID).
		WithContext(ctx).
		SerialConsistency(gocql.LocalSerial).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return models.Identity{}, fmt.Errorf("scylla: reserve email: %w", err)
	}
	if !applied {
		return models.Identity{}, backend.ErrEmailTaken
	}

	now := b.now()
	user := models.User{
		ID:        userID.String(),
		Username:  reg.Username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = b.session.Query(stmtInsertUser, userID, email, reg.Username, hash, now, now).WithContext(ctx).Exec()
	if err != nil {
		// libère la réservation pour ne pas bloquer l'email
		if _, relErr := b.session.Query(stmtReleaseEmail, email, userID).WithContext(ctx).MapScanCAS(map[string]interface{}{}); relErr != nil {
			log.Error().Err(relErr).Str("email", email).Msg("❌ Impossible de libérer l'email réservé")
		}
		return models.Identity{}, fmt.Errorf("scylla: insert user: %w", err)
	}

	return b.identity(user)
}

func (b *Backend) Login(ctx context.Context, email, password string) (models.Identity, error) {
	userID, err := b.userIDByEmail(ctx, email)
	if err != nil {
		return models.Identity{}, err
	}
	user, hash, err := b.userByID(ctx, userID)
	if err != nil {
		return models.Identity{}, err
	}
	ok, err := utils.VerifyPassword(password, hash)
	if err != nil || !ok {
		return models.Identity{}, backend.ErrInvalidCredentials
	}
	return b.identity(*user)
}

func (b *Backend) Me(ctx context.Context, token string) (*models.User, error) {
	id, err := b.tokens.Verify(token)
	if err != nil {
		return nil, backend.ErrInvalidToken
	}
	userID, err := gocql.ParseUUID(id)
	if err != nil {
		return nil, backend.ErrInvalidToken
	}
	user, _, err := b.userByID(ctx, userID)
	return user, err
}

func (b *Backend) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	userID, err := b.userIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	user, _, err := b.userByID(ctx, userID)
	return user, err
}

func (b *Backend) SetPassword(ctx context.Context, userID, password string) error {
	id, err := gocql.ParseUUID(userID)
	if err != nil {
		return backend.ErrNotFound
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return b.session.Query(stmtUpdateUserPassword, hash, b.now(), id).WithContext(ctx).Exec()
}

func (b *Backend) userIDByEmail(ctx context.Context, email string) (gocql.UUID, error) {
	var userID gocql.UUID
	err := b.session.Query(stmtGetUserByEmail, backend.NormalizeEmail(email)).WithContext(ctx).Scan(&userID)
	if errors.Is(err, gocql.ErrNotFound) {
		return userID, backend.ErrNotFound
	}
	return userID, err
}

func (b *Backend) userByID(ctx context.Context, userID gocql.UUID) (*models.User, string, error) {
	user := models.User{ID: userID.String()}
	var hash string
	err := b.session.Query(stmtGetUserByID, userID).WithContext(ctx).
		Scan(&user.Email, &user.Username, &hash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, "", backend.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return &user, hash, nil
}

func (b *Backend) identity(user models.User) (models.Identity, error) {
	token, err := b.tokens.Generate(user)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{User: user, Token: token}, nil
}

// ================== COMMANDES ==================

func (b *Backend) CreateLineItem(ctx context.Context, draftID string, in backend.LineItemInput) (models.LineItem, error) {
	draft, err := gocql.ParseUUID(draftID)
	if err != nil {
		return models.LineItem{}, fmt.Errorf("scylla: draft id: %w", err)
	}
	lineID := gocql.TimeUUID()
	now := b.now()
	err = b.session.Query(stmtInsertLineItem, draft, lineID, in.ProductID, in.Quantity, in.Price.String(), now).
		WithContext(ctx).Exec()
	if err != nil {
		return models.LineItem{}, fmt.Errorf("scylla: insert line item: %w", err)
	}
	return models.LineItem{
		ID:        lineID.String(),
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Price:     in.Price,
		CreatedAt: now,
	}, nil
}

// CreateOrder écrit l'en-tête et l'index par utilisateur dans un batch logué.
// Une fois le batch appliqué, la commande existe : plus aucune erreur n'est
// retournée, sinon l'appelant supprimerait ses lignes.
func (b *Backend) CreateOrder(ctx context.Context, in backend.OrderInput) (models.Order, error) {
	draft, err := gocql.ParseUUID(in.DraftID)
	if err != nil {
		return models.Order{}, fmt.Errorf("scylla: draft id: %w", err)
	}
	userID, err := gocql.ParseUUID(in.UserID)
	if err != nil {
		return models.Order{}, backend.ErrNotFound
	}
	if _, _, err := b.userByID(ctx, userID); err != nil {
		return models.Order{}, err
	}

	lineIDs := make([]gocql.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		id, err := gocql.ParseUUID(line.ID)
		if err != nil {
			return models.Order{}, fmt.Errorf("scylla: line id: %w", err)
		}
		lineIDs = append(lineIDs, id)
	}

	orderID := gocql.TimeUUID()
	now := b.now()
	total := in.TotalPrice.String()

	batch := b.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(stmtInsertOrder, orderID, draft, userID, in.Email, lineIDs, total, models.OrderStatusPending, now)
	batch.Query(stmtInsertOrderByUser, userID, now, orderID, total, models.OrderStatusPending)
	if err := b.session.ExecuteBatch(batch); err != nil {
		return models.Order{}, fmt.Errorf("scylla: insert order: %w", err)
	}

	return models.Order{
		ID:         orderID.String(),
		UserID:     in.UserID,
		Email:      in.Email,
		Lines:      append([]models.LineItem(nil), in.Lines...),
		TotalPrice: in.TotalPrice,
		Status:     models.OrderStatusPending,
		CreatedAt:  now,
	}, nil
}

func (b *Backend) DiscardDraft(ctx context.Context, draftID string) error {
	draft, err := gocql.ParseUUID(draftID)
	if err != nil {
		return fmt.Errorf("scylla: draft id: %w", err)
	}
	return b.session.Query(stmtDeleteDraft, draft).WithContext(ctx).Exec()
}

func (b *Backend) Order(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := gocql.ParseUUID(orderID)
	if err != nil {
		return nil, backend.ErrNotFound
	}

	var (
		draft, userID gocql.UUID
		lineIDs       []gocql.UUID
		total         string
	)
	order := models.Order{ID: orderID}
	err = b.session.Query(stmtGetOrder, id).WithContext(ctx).
		Scan(&draft, &userID, &order.Email, &lineIDs, &total, &order.Status, &order.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	order.UserID = userID.String()
	if order.TotalPrice, err = money(total); err != nil {
		return nil, fmt.Errorf("scylla: order %s: %w", orderID, err)
	}

	ids := make([]string, len(lineIDs))
	for i, l := range lineIDs {
		ids[i] = l.String()
	}
	if order.Lines, err = b.draftLines(ctx, draft, ids); err != nil {
		return nil, err
	}
	return &order, nil
}

func (b *Backend) OrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	id, err := gocql.ParseUUID(userID)
	if err != nil {
		return nil, nil
	}

	iter := b.session.Query(stmtOrdersByUser, id).WithContext(ctx).Iter()
	var (
		out     []models.Order
		orderID gocql.UUID
		total   string
		status  string
		created time.Time
		bad     error
	)
	for iter.Scan(&orderID, &total, &status, &created) {
		price, err := money(total)
		if err != nil {
			bad = fmt.Errorf("order %s: %w", orderID, err)
			break
		}
		out = append(out, models.Order{
			ID:         orderID.String(),
			UserID:     userID,
			TotalPrice: price,
			Status:     status,
			CreatedAt:  created,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: orders by user: %w", err)
	}
	if bad != nil {
		return nil, fmt.Errorf("scylla: orders by user: %w", bad)
	}
	return out, nil
}

func (b *Backend) SetOrderStatus(ctx context.Context, orderID, status string) error {
	order, err := b.Order(ctx, orderID)
	if err != nil {
		return err
	}
	id, _ := gocql.ParseUUID(orderID)
	userID, err := gocql.ParseUUID(order.UserID)
	if err != nil {
		return err
	}

	batch := b.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(stmtUpdateOrderStatus, status, id)
	batch.Query(stmtUpdateOrderByUser, status, userID, order.CreatedAt, id)
	return b.session.ExecuteBatch(batch)
}

// draftLines relit les lignes d'un brouillon dans l'ordre de ids.
func (b *Backend) draftLines(ctx context.Context, draft gocql.UUID, ids []string) ([]models.LineItem, error) {
	iter := b.session.Query(stmtLineItemsByDraft, draft).WithContext(ctx).Iter()
	byID := make(map[string]models.LineItem)
	var (
		lineID gocql.UUID
		item   models.LineItem
		price  string
		bad    error
	)
	for iter.Scan(&lineID, &item.ProductID, &item.Quantity, &price, &item.CreatedAt) {
		item.ID = lineID.String()
		if item.Price, bad = money(price); bad != nil {
			break
		}
		byID[item.ID] = item
		item = models.LineItem{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scylla: line items: %w", err)
	}
	if bad != nil {
		return nil, fmt.Errorf("scylla: line item %s: %w", item.ID, bad)
	}

	lines := make([]models.LineItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			lines = append(lines, item)
		}
	}
	return lines, nil
}

// money lit un montant stocké en texte décimal.
func money(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}
