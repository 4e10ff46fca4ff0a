// Package pricing construit les instantanés de prix affichés au client.
//
// Un Snapshot est immuable et propre à une requête. Il alimente le panier et
// l'affichage, jamais le calcul d'une commande.
package pricing

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/backend"
	"storefront/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Record struct {
	ProductID   string          `json:"documentId"`
	DisplayName string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"price"`
	ImageRef    string          `json:"image,omitempty"`
}

type Snapshot struct {
	takenAt time.Time
	records map[string]Record
	order   []string
}

func (s *Snapshot) Lookup(productID string) (Record, bool) {
	r, ok := s.records[productID]
	return r, ok
}

// Records retourne les fiches dans l'ordre de la demande.
func (s *Snapshot) Records() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// ImageSigner transforme une référence d'image en URL consultable.
type ImageSigner interface {
	SignImage(ctx context.Context, ref string) (string, error)
}

type Builder struct {
	catalog backend.Catalog
	signer  ImageSigner
	now     func() time.Time
}

// NewBuilder accepte un signer nil : les références sont alors servies telles quelles.
func NewBuilder(catalog backend.Catalog, signer ImageSigner) *Builder {
	return &Builder{catalog: catalog, signer: signer, now: time.Now}
}

func (b *Builder) Snapshot(ctx context.Context, ids []string) (*Snapshot, error) {
	ids = backend.DedupeIDs(ids)
	snap := &Snapshot{takenAt: b.now(), records: make(map[string]Record, len(ids))}
	if len(ids) == 0 {
		return snap, nil
	}

	products, err := b.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pricing: snapshot: %w", err)
	}
	for _, p := range products {
		snap.records[p.ID] = b.record(ctx, p)
	}
	for _, id := range ids {
		if _, ok := snap.records[id]; ok {
			snap.order = append(snap.order, id)
		}
	}
	return snap, nil
}

func (b *Builder) record(ctx context.Context, p models.Product) Record {
	r := Record{
		ProductID:   p.ID,
		DisplayName: p.Name,
		UnitPrice:   p.Price,
		ImageRef:    p.ImageRef(),
	}
	if b.signer != nil && r.ImageRef != "" {
		signed, err := b.signer.SignImage(ctx, r.ImageRef)
		if err != nil {
			log.Warn().Err(err).Str("product_id", p.ID).Msg("⚠️ Signature d'image échouée")
		} else {
			r.ImageRef = signed
		}
	}
	return r
}
