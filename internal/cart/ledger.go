// Package cart tient le panier d'un client : une liste de lignes persistée
// après chaque mutation, dont le total est une projection pure.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/pricing"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("cart: not found")

// Mutation calcule les lignes suivantes à partir des lignes persistées.
// changed=false laisse le panier tel quel.
type Mutation func(lines []models.CartLine) (next []models.CartLine, changed bool)

// Store persiste les lignes d'un panier sous une clé.
type Store interface {
	// Load retourne ErrNotFound si aucun panier n'existe pour key.
	Load(ctx context.Context, key string) ([]models.CartLine, error)
	// Update applique fn atomiquement à l'état persisté et retourne l'état
	// obtenu. Un résultat vide supprime le panier.
	Update(ctx context.Context, key string, fn Mutation) ([]models.CartLine, error)
	Delete(ctx context.Context, key string) error
}

type Ledger struct {
	mu    sync.Mutex
	key   string
	store Store
	lines []models.CartLine
}

// Open charge le panier persisté, ou un panier vide s'il n'existe pas ou
// n'est pas lisible.
func Open(ctx context.Context, store Store, key string) (*Ledger, error) {
	lines, err := store.Load(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("cart: load %s: %w", key, err)
	}
	return &Ledger{key: key, store: store, lines: lines}, nil
}

// Add incrémente la ligne existante sans toucher à son prix, ou crée une
// ligne de quantité 1 au prix de l'instantané.
func (l *Ledger) Add(ctx context.Context, rec pricing.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.commit(ctx, func(lines []models.CartLine) ([]models.CartLine, bool) {
		for i := range lines {
			if lines[i].ProductID == rec.ProductID {
				lines[i].Quantity++
				return lines, true
			}
		}
		return append(lines, models.CartLine{
			ProductID: rec.ProductID,
			Name:      rec.DisplayName,
			ImageRef:  rec.ImageRef,
			Quantity:  1,
			UnitPrice: rec.UnitPrice,
		}), true
	})
}

// Remove décrémente la ligne, ou la supprime si sa quantité est 1.
// Retirer un produit absent ne fait rien.
func (l *Ledger) Remove(ctx context.Context, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.commit(ctx, func(lines []models.CartLine) ([]models.CartLine, bool) {
		next := make([]models.CartLine, 0, len(lines))
		changed := false
		for _, line := range lines {
			if line.ProductID != productID {
				next = append(next, line)
				continue
			}
			changed = true
			if line.Quantity > 1 {
				line.Quantity--
				next = append(next, line)
			}
		}
		return next, changed
	})
}

func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("cart: clear %s: %w", l.key, err)
	}
	l.lines = nil
	return nil
}

func (l *Ledger) Lines() []models.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyLines()
}

func (l *Ledger) Quantity(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}

func (l *Ledger) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines) == 0
}

func (l *Ledger) CalculatedPrice() Summary {
	return Calculate(l.Lines())
}

// commit applique fn à l'état persisté, qui peut avoir été modifié par une
// autre requête depuis Open, puis adopte le résultat.
func (l *Ledger) commit(ctx context.Context, fn Mutation) error {
	lines, err := l.store.Update(ctx, l.key, fn)
	if err != nil {
		return fmt.Errorf("cart: save %s: %w", l.key, err)
	}
	l.lines = lines
	return nil
}

func (l *Ledger) copyLines() []models.CartLine {
	return append([]models.CartLine(nil), l.lines...)
}

type PricedLine struct {
	models.CartLine
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Summary est la vue calculée du panier : lignes étendues et total estimé.
type Summary struct {
	Products   []PricedLine    `json:"products"`
	Count      int             `json:"count"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Calculate dérive les totaux des lignes. Le résultat est indicatif : le
// montant facturé est recalculé côté serveur.
func Calculate(lines []models.CartLine) Summary {
	s := Summary{Products: make([]PricedLine, 0, len(lines)), TotalPrice: decimal.Zero}
	for _, line := range lines {
		total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		s.Products = append(s.Products, PricedLine{CartLine: line, TotalPrice: total})
		s.Count += line.Quantity
		s.TotalPrice = s.TotalPrice.Add(total)
	}
	return s
}
