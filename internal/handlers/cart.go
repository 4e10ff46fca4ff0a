package handlers

import (
	"net/http"
	"strings"

	"storefront/internal/cart"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// GET /snapshot?ids=a,b
func (h *Handler) Snapshot(c *gin.Context) {
	var ids []string
	for _, raw := range c.QueryArray("ids") {
		ids = append(ids, strings.Split(raw, ",")...)
	}

	snap, err := h.Prices.Snapshot(c.Request.Context(), ids)
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur instantané de prix")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": snap.Records(),
		"takenAt":  snap.TakenAt(),
	})
}

func (h *Handler) openCart(c *gin.Context) (*cart.Ledger, bool) {
	id, err := h.Visitors.CartID(c.Writer, c.Request)
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur cookie panier")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}
	ledger, err := cart.Open(c.Request.Context(), h.Carts, id)
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur lecture panier")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart unavailable"})
		return nil, false
	}
	return ledger, true
}

// GET /cart
func (h *Handler) GetCart(c *gin.Context) {
	ledger, ok := h.openCart(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ledger.CalculatedPrice())
}

// POST /cart/items/:productId
func (h *Handler) AddToCart(c *gin.Context) {
	productID := c.Param("productId")
	snap, err := h.Prices.Snapshot(c.Request.Context(), []string{productID})
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur instantané de prix")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Catalog unavailable"})
		return
	}
	rec, found := snap.Lookup(productID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product was not found"})
		return
	}

	ledger, ok := h.openCart(c)
	if !ok {
		return
	}
	if err := ledger.Add(c.Request.Context(), rec); err != nil {
		log.Error().Err(err).Msg("❌ Erreur ajout panier")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart unavailable"})
		return
	}
	c.JSON(http.StatusOK, ledger.CalculatedPrice())
}

// DELETE /cart/items/:productId
func (h *Handler) RemoveFromCart(c *gin.Context) {
	ledger, ok := h.openCart(c)
	if !ok {
		return
	}
	if err := ledger.Remove(c.Request.Context(), c.Param("productId")); err != nil {
		log.Error().Err(err).Msg("❌ Erreur retrait panier")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart unavailable"})
		return
	}
	c.JSON(http.StatusOK, ledger.CalculatedPrice())
}

// DELETE /cart
func (h *Handler) ClearCart(c *gin.Context) {
	ledger, ok := h.openCart(c)
	if !ok {
		return
	}
	if err := ledger.Clear(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("❌ Erreur vidage panier")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart unavailable"})
		return
	}
	c.JSON(http.StatusOK, ledger.CalculatedPrice())
}
