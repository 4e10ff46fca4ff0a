package handlers

import (
	"errors"
	"net/http"
	"time"

	"storefront/internal/backend"
	"storefront/internal/middleware"
	"storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type orderSummary struct {
	ID         string          `json:"documentId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     string          `json:"orderStatus"`
	CreatedAt  string          `json:"createdAt"`
}

// ================== HISTORIQUE ==================

// GET /orders
func (h *Handler) ListOrders(c *gin.Context) {
	user := middleware.CurrentUser(c)
	orders, err := h.Orders.OrdersByUser(c.Request.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("❌ Erreur lecture commandes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	out := make([]orderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, summarize(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

// GET /orders/:orderId
//
// Une commande d'un autre compte ferme la session (comme un token invalide).
func (h *Handler) GetOrder(c *gin.Context) {
	user := middleware.CurrentUser(c)
	o, err := h.Orders.Order(c.Request.Context(), c.Param("orderId"))
	if errors.Is(err, backend.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order was not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur lecture commande")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if o.UserID != user.ID {
		log.Warn().Str("user_id", user.ID).Str("order_id", o.ID).Msg("⚠️ Accès à une commande étrangère")
		_ = h.Sessions.Destroy(c.Writer, c.Request, "/signin")
		return
	}
	c.JSON(http.StatusOK, o)
}

func summarize(o models.Order) orderSummary {
	return orderSummary{
		ID:         o.ID,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt.UTC().Format(time.RFC3339),
	}
}
