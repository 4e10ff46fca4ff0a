// Package order transforme une soumission de panier en commande persistée,
// au prix faisant autorité du backend.
package order

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/backend"
	"storefront/internal/forms"
	"storefront/internal/identity"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownProduct = errors.New("order: product was not found")
	ErrMissingEmail   = errors.New("order: no purchaser email")
)

// Completions est notifié après la création d'une commande.
type Completions interface {
	OrderPlaced(ctx context.Context, order models.Order)
}

type Reconciler struct {
	catalog     backend.Catalog
	orders      backend.Orders
	identity    *identity.Resolver
	completions Completions
	newDraftID  func() string
}

func NewReconciler(catalog backend.Catalog, orders backend.Orders, resolver *identity.Resolver, completions Completions) *Reconciler {
	return &Reconciler{
		catalog:     catalog,
		orders:      orders,
		identity:    resolver,
		completions: completions,
		newDraftID:  uuid.NewString,
	}
}

// Result est une commande acceptée et l'acheteur pour qui elle a été passée.
type Result struct {
	Order     models.Order
	Purchaser identity.Purchaser
}

// Submit valide la soumission puis crée la commande. Les erreurs de saisie
// sont retournées dans forms.Errors ; toute autre erreur est fatale pour la
// requête et aucune commande n'existe alors côté backend.
func (r *Reconciler) Submit(ctx context.Context, sub Submission, current *models.User) (*Result, forms.Errors, error) {
	// 1. Structure
	errs, err := sub.validate()
	if err != nil {
		return nil, nil, err
	}
	if !errs.Empty() {
		return nil, errs, nil
	}

	sel := identity.Selector{Status: identity.Status(sub.Status), Email: sub.Email}

	// 2. Identité
	if errs, err := r.identity.Check(ctx, sel, current); err != nil || !errs.Empty() {
		return nil, errs, err
	}

	// 3. Prix faisant autorité, en une seule requête
	ids := make([]string, len(sub.Products))
	for i, p := range sub.Products {
		ids[i] = p.DocumentID
	}
	products, err := r.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("order: fetch products: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}

	lines := make([]backend.LineItemInput, len(sub.Products))
	for i, p := range sub.Products {
		price, ok := prices[p.DocumentID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProduct, p.DocumentID)
		}
		lines[i] = backend.LineItemInput{
			ProductID: p.DocumentID,
			Quantity:  *p.Quantity,
			Price:     price.Mul(decimal.NewFromInt(int64(*p.Quantity))),
		}
	}

	// 4. Acheteur (création du compte invité si besoin)
	purchaser, errs, err := r.identity.Resolve(ctx, sel, current)
	if err != nil || !errs.Empty() {
		return nil, errs, err
	}
	if purchaser.Email == "" {
		return nil, nil, ErrMissingEmail
	}

	// 5. Persistance
	order, err := r.persist(ctx, purchaser, lines)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Stringer("total", order.TotalPrice).
		Int("lines", len(order.Lines)).
		Msg("✅ Commande créée")

	if r.completions != nil {
		r.completions.OrderPlaced(ctx, order)
	}
	return &Result{Order: order, Purchaser: *purchaser}, nil, nil
}

// persist crée les lignes une à une sous un brouillon, puis l'en-tête. En
// cas d'échec, les lignes déjà créées sont supprimées.
func (r *Reconciler) persist(ctx context.Context, purchaser *identity.Purchaser, lines []backend.LineItemInput) (models.Order, error) {
	draftID := r.newDraftID()
	items := make([]models.LineItem, 0, len(lines))
	total := decimal.Zero

	fail := func(err error) (models.Order, error) {
		// le contexte de la requête peut être annulé : la compensation doit passer
		cleanupCtx := context.WithoutCancel(ctx)
		if derr := r.orders.DiscardDraft(cleanupCtx, draftID); derr != nil {
			log.Error().Err(derr).Str("draft_id", draftID).Msg("❌ Lignes orphelines non supprimées")
		}
		return models.Order{}, err
	}

	for _, in := range lines {
		item, err := r.orders.CreateLineItem(ctx, draftID, in)
		if err != nil {
			return fail(fmt.Errorf("order: create line item: %w", err))
		}
		items = append(items, item)
		total = total.Add(item.Price)
	}

	order, err := r.orders.CreateOrder(ctx, backend.OrderInput{
		DraftID:    draftID,
		UserID:     purchaser.UserID,
		Email:      purchaser.Email,
		Lines:      items,
		TotalPrice: total,
	})
	if err != nil {
		return fail(fmt.Errorf("order: create order: %w", err))
	}
	return order, nil
}
