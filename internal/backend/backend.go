// Package backend définit le contrat avec le système de données faisant
// autorité (catalogue, comptes, commandes).
package backend

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("backend: not found")
	ErrEmailTaken         = errors.New("backend: email already registered")
	ErrInvalidCredentials = errors.New("backend: invalid credentials")
	ErrInvalidToken       = errors.New("backend: invalid token")
)

// Catalog expose les prix faisant autorité.
type Catalog interface {
	// ProductsByIDs résout tous les ids en une seule requête. Les ids
	// inconnus sont absents du résultat, sans erreur.
	ProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

type Registration struct {
	Username string
	Email    string
	Password string
}

// Accounts gère les comptes et les tokens de session.
type Accounts interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	// Register crée le compte de façon atomique : ErrEmailTaken si l'email
	// (insensible à la casse) est déjà pris, même en cas de course.
	Register(ctx context.Context, reg Registration) (models.Identity, error)
	Login(ctx context.Context, email, password string) (models.Identity, error)
	// Me résout l'utilisateur porteur du token.
	Me(ctx context.Context, token string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, userID, password string) error
}

type LineItemInput struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// OrderInput décrit l'en-tête d'une commande. Lines sont les lignes déjà
// créées sous DraftID, dans l'ordre de la commande.
type OrderInput struct {
	DraftID    string
	UserID     string
	Email      string
	Lines      []models.LineItem
	TotalPrice decimal.Decimal
}

// Orders persiste les commandes. Les lignes sont créées sous un brouillon
// (draft) avant l'en-tête : DiscardDraft supprime les lignes orphelines.
type Orders interface {
	CreateLineItem(ctx context.Context, draftID string, in LineItemInput) (models.LineItem, error)
	CreateOrder(ctx context.Context, in OrderInput) (models.Order, error)
	DiscardDraft(ctx context.Context, draftID string) error
	Order(ctx context.Context, orderID string) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	SetOrderStatus(ctx context.Context, orderID, status string) error
}

type Backend interface {
	Catalog
	Accounts
	Orders
}

// NormalizeEmail retourne la clé d'unicité d'un email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DedupeIDs retire les doublons et les ids vides en conservant l'ordre.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
