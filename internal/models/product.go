package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product est la fiche catalogue faisant autorité côté backend.
// ID est l'identifiant opaque (documentId) échangé avec les clients.
type Product struct {
	ID          string          `json:"documentId"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ImageRef retourne la première image, ou ""
func (p Product) ImageRef() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}
