package models

import "github.com/shopspring/decimal"

// CartLine est une ligne du panier. UnitPrice est le prix capturé à l'ajout
// initial du produit : il sert uniquement à l'affichage.
type CartLine struct {
	ProductID string          `json:"documentId"`
	Name      string          `json:"name,omitempty"`
	ImageRef  string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"pricePerItem"`
}
