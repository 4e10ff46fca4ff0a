package main

import (
	"context"
	"time"

	"storefront/internal/backend"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

type catalogWriter interface {
	backend.Catalog
	UpsertProduct(ctx context.Context, p models.Product) error
}

// seedCatalog écrit les produits absents du catalogue, sans toucher aux
// produits existants. Retourne le nombre de produits ajoutés.
func seedCatalog(ctx context.Context, db catalogWriter, products []models.Product) (int, error) {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	existing, err := db.ProductsByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.ID] = true
	}

	added := 0
	for _, p := range products {
		if have[p.ID] {
			continue
		}
		if err := db.UpsertProduct(ctx, p); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// demoCatalog alimente le backend mémoire en développement.
func demoCatalog() []models.Product {
	now := time.Now().UTC()
	product := func(id, name, price, image string) models.Product {
		return models.Product{
			ID:        id,
			Name:      name,
			Slug:      id,
			Price:     decimal.RequireFromString(price),
			ImageURLs: []string{image},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return []models.Product{
		product("oak-chair", "Oak chair", "89.90", "products/oak-chair.jpg"),
		product("linen-cushion", "Linen cushion", "24.50", "products/linen-cushion.jpg"),
		product("ceramic-mug", "Ceramic mug", "12.00", "products/ceramic-mug.jpg"),
		product("wool-throw", "Wool throw", "59.00", "products/wool-throw.jpg"),
	}
}
