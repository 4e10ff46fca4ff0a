package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
)

// LineItem est une ligne de commande persistée.
// Price = prix unitaire (backend) × quantité.
type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"documentId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

type Order struct {
	ID         string          `json:"documentId"`
	UserID     string          `json:"user_id"`
	Email      string          `json:"email"`
	Lines      []LineItem      `json:"lines"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     string          `json:"orderStatus"`
	CreatedAt  time.Time       `json:"createdAt"`
}
